package kpi

import (
	"treblereport/domain/dataset"
	"treblereport/internal/aggregate"
	"treblereport/internal/textnorm"
)

// suggestion describes how one KPI slot is pre-filled: the first present column among
// columns, counting the observed values whose match key is in terms.
type suggestion struct {
	columns []string
	terms   []string
}

var suggestions = struct {
	envios, entregas, clics, avance suggestion
}{
	envios: suggestion{
		columns: []string{"Estado del despliegue", "estado_del_despliegue", "deployment_status", "status"},
		terms:   []string{"enviado", "sent", "entregado", "delivered", "leido", "read"},
	},
	entregas: suggestion{
		columns: []string{"Estado del despliegue", "estado_del_despliegue", "deployment_status", "status"},
		terms:   []string{"entregado", "delivered", "leido", "read"},
	},
	clics: suggestion{
		columns: []string{"Estado de la conversación", "estado_de_la_conversacion", "conversation_status"},
		terms:   []string{"respondido", "replied", "abierta", "open", "clic", "click", "clicked"},
	},
	avance: suggestion{
		columns: []string{"hubspot_treble_avances_emp_0", "avance", "avances"},
		terms:   []string{"si", "yes", "true", "1", "avanzo", "avanza"},
	},
}

// Suggest proposes a RuleSet from well-known column names and the values actually observed
// in t. It is advisory only: slots with no recognisable column or value stay unconfigured,
// and nothing in rule evaluation depends on whether it ran.
func Suggest(t *dataset.CanonicalTable) dataset.RuleSet {
	return dataset.RuleSet{
		Envios:   suggest(t, suggestions.envios),
		Entregas: suggest(t, suggestions.entregas),
		Clics:    suggest(t, suggestions.clics),
		Avance:   suggest(t, suggestions.avance),
	}
}

func suggest(t *dataset.CanonicalTable, s suggestion) dataset.KPIRule {
	column := firstPresent(t, s.columns)
	if column == "" {
		return dataset.KPIRule{}
	}
	terms := make(map[string]bool, len(s.terms))
	for _, term := range s.terms {
		terms[term] = true
	}

	var accepted []string
	for _, v := range aggregate.DistinctValues(t, column) {
		if v != dataset.NoDataLabel && terms[textnorm.MatchKey(v)] {
			accepted = append(accepted, v)
		}
	}
	if len(accepted) == 0 {
		return dataset.KPIRule{}
	}
	return dataset.CountByValue(column, accepted...)
}

func firstPresent(t *dataset.CanonicalTable, candidates []string) string {
	for _, c := range candidates {
		if t.HasColumn(c) {
			return c
		}
	}
	return ""
}
