package ui

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treblereport/domain/dataset"
	"treblereport/internal/config"
	"treblereport/internal/errors"
	"treblereport/internal/report"
	"treblereport/internal/session"
)

const sampleCSV = "Celular;Fecha del despliegue;Estado del despliegue\n" +
	"300;01/03/2024;Enviado\n" +
	"301;15/03/2024;Entregado\n" +
	"300;02/04/2024;Enviado\n" +
	"302;sin fecha;Enviado\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0", GinMode: gin.TestMode},
		Upload:   config.UploadConfig{MaxUploadMB: 1, DefaultEncoding: "utf-8", FixMojibake: true},
		Report:   config.ReportConfig{Locale: "en", DefaultParseMode: dataset.ModeDayFirst, UniqueKeyColumn: "Celular"},
		Session:  config.SessionConfig{TTL: time.Hour, CleanupInterval: time.Minute},
		LogLevel: "INFO",
	}
	s, err := NewServer(cfg, session.NewMemoryStore(), session.NewParseCache(), report.Defaults{
		ParseMode:       cfg.Report.DefaultParseMode,
		UniqueKeyColumn: cfg.Report.UniqueKeyColumn,
		Locale:          cfg.Report.Locale,
	})
	require.NoError(t, err)
	return s
}

func upload(t *testing.T, s *Server, name, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func do(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func uploadSample(t *testing.T, s *Server) DatasetResponse {
	t.Helper()
	w := upload(t, s, "export.csv", sampleCSV, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ds DatasetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ds))
	return ds
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Reporte mensual Treble")

	w = do(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestUploadDataset(t *testing.T) {
	s := newTestServer(t)
	ds := uploadSample(t, s)

	assert.Equal(t, "export.csv", ds.FileName)
	assert.Equal(t, []string{"Celular", "Fecha del despliegue", "Estado del despliegue"}, ds.Headers)
	assert.Equal(t, 4, ds.Rows)
	assert.Equal(t, []string{"Fecha del despliegue"}, ds.DateColumnCandidates)
	assert.Equal(t, []string{"Estado del despliegue"}, ds.SummaryColumnDefaults)
	assert.False(t, ds.HasReport)

	w := do(s, http.MethodGet, "/api/datasets/"+ds.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Same content and options are parsed once.
	uploadSample(t, s)
	entries, hits, misses := s.cache.Stats()
	assert.Equal(t, 1, entries)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t)

	w := upload(t, s, "export.csv", sampleCSV, map[string]string{"encoding": "ebcdic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(t, s, "export.csv", "Estado\xf3n\n1\n", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeLoadFailed)

	w = upload(t, s, "export.csv", strings.Repeat("a", 3<<19), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(s, http.MethodPost, "/api/datasets", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMonthsPicker(t *testing.T) {
	s := newTestServer(t)
	ds := uploadSample(t, s)

	w := do(s, http.MethodGet, "/api/datasets/"+ds.ID+"/months?date_column=Fecha%20del%20despliegue", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp MonthsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{2024}, resp.Years)
	assert.Equal(t, []MonthOption{
		{Month: 3, Key: "2024-03", Label: "03 - Marzo"},
		{Month: 4, Key: "2024-04", Label: "04 - Abril"},
	}, resp.Months[2024])
	assert.Equal(t, 4, resp.DefaultMonth)
	assert.Equal(t, 3, resp.ValidRows)
	assert.Equal(t, 1, resp.InvalidRows)

	w = do(s, http.MethodGet, "/api/datasets/"+ds.ID+"/months", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "date_column is required")

	w = do(s, http.MethodGet, "/api/datasets/"+ds.ID+"/months?date_column=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportAndExports(t *testing.T) {
	s := newTestServer(t)
	ds := uploadSample(t, s)
	base := "/api/datasets/" + ds.ID

	w := do(s, http.MethodGet, base+"/export/csv", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "no report yet")

	w = do(s, http.MethodPost, base+"/report", report.Request{
		DateColumn: "Fecha del despliegue",
		Year:       2024,
		Month:      3,
		RuleSpecs: map[string]string{
			"envios":   "count:Estado del despliegue=enviado",
			"entregas": "count:Estado del despliegue=Entregado",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Report struct {
			SelectedMonth string                     `json:"selected_month"`
			TotalRows     int                        `json:"total_rows"`
			UniqueKeys    int                        `json:"unique_keys"`
			KPIs          []dataset.MonthlyKPIRecord `json:"kpis"`
		} `json:"report"`
		KPIsDisplay []report.DisplayRow `json:"kpis_display"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-03", resp.Report.SelectedMonth)
	assert.Equal(t, 2, resp.Report.TotalRows)
	assert.Equal(t, 2, resp.Report.UniqueKeys)
	require.Len(t, resp.Report.KPIs, 2)
	assert.Equal(t, dataset.Known(1), resp.Report.KPIs[0].Envios)
	assert.False(t, resp.Report.KPIs[0].Clics.Valid)
	assert.Equal(t, "1 ▬", resp.KPIsDisplay[1].Envios)

	w = do(s, http.MethodGet, base+"/export/csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="treble_mes_2024-03.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Celular,Fecha del despliegue,Estado del despliegue\n300,01/03/2024,Enviado\n301,15/03/2024,Entregado\n", w.Body.String())

	w = do(s, http.MethodGet, base+"/export/csv?delimiter=;", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Celular;Fecha del despliegue;Estado del despliegue\n300;01/03/2024;Enviado\n301;15/03/2024;Entregado\n", w.Body.String())
	w = do(s, http.MethodGet, base+"/export/csv?delimiter=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodGet, base+"/export/counts?column=Estado%20del%20despliegue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Estado del despliegue,conteo\nEnviado,1\nEntregado,1\n", w.Body.String())

	for _, kind := range []string{"zip", "xlsx", "html", "md"} {
		w = do(s, http.MethodGet, base+"/export/"+kind, nil)
		assert.Equal(t, http.StatusOK, w.Code, kind)
		assert.NotEmpty(t, w.Body.Bytes(), kind)
	}

	w = do(s, http.MethodGet, base+"/export/counts?column=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(s, http.MethodGet, base+"/export/pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportErrors(t *testing.T) {
	s := newTestServer(t)
	ds := uploadSample(t, s)
	base := "/api/datasets/" + ds.ID

	w := do(s, http.MethodPost, base+"/report", map[string]interface{}{"parse_mode": "dayfirst"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "date_column is required")

	w = do(s, http.MethodPost, base+"/report", report.Request{DateColumn: "Fecha del despliegue", ParseMode: "iso"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeEmptyAfterFilter)

	w = do(s, http.MethodPost, base+"/report", report.Request{DateColumn: "Fecha del despliegue", ParseMode: "regex", RegexPattern: "("})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/datasets/not-a-uuid/report", report.Request{DateColumn: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDataset(t *testing.T) {
	s := newTestServer(t)
	ds := uploadSample(t, s)

	w := do(s, http.MethodDelete, "/api/datasets/"+ds.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(s, http.MethodGet, "/api/datasets/"+ds.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
