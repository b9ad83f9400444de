package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treblereport/domain/dataset"
	"treblereport/internal/config"
	"treblereport/internal/errors"
)

const exportCSV = "Celular,Fecha del despliegue,Estado del despliegue\n" +
	"300,2024-03-01,Enviado\n" +
	"301,2024-03-15,Entregado\n" +
	"300,2024-04-02,Enviado\n"

func testRouter() http.Handler {
	return newRouter(&config.Config{
		Upload:  config.UploadConfig{MaxUploadMB: 1, DefaultEncoding: "utf-8"},
		Report:  config.ReportConfig{Locale: "en", DefaultParseMode: dataset.ModeISOStrict, UniqueKeyColumn: "Celular"},
		Session: config.SessionConfig{TTL: time.Hour, CleanupInterval: time.Minute},
	})
}

func post(t *testing.T, path, content, cfg string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if cfg != "" {
		require.NoError(t, mw.WriteField("config", cfg))
	}
	fw, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestReportJSON(t *testing.T) {
	w := post(t, "/report", exportCSV, `{"date_column":"Fecha del despliegue","kpi_rule_specs":{"envios":"count:Estado del despliegue=Enviado"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Report struct {
			SelectedMonth string `json:"selected_month"`
			TotalRows     int    `json:"total_rows"`
		} `json:"report"`
		Locale string `json:"locale"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-04", resp.Report.SelectedMonth)
	assert.Equal(t, 1, resp.Report.TotalRows)
	assert.Equal(t, "en", resp.Locale)
}

func TestReportExports(t *testing.T) {
	cfg := `{"date_column":"Fecha del despliegue","year":2024,"month":3}`

	w := post(t, "/report/csv", exportCSV, cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="treble_mes_2024-03.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Celular,Fecha del despliegue,Estado del despliegue\n300,2024-03-01,Enviado\n301,2024-03-15,Entregado\n", w.Body.String())

	w = post(t, "/report/xlsx", exportCSV, cfg)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("PK"), w.Body.Bytes()[:2])

	w = post(t, "/report/html", exportCSV, cfg)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<table>")

	w = post(t, "/report/pdf", exportCSV, cfg)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportErrors(t *testing.T) {
	w := post(t, "/report", exportCSV, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "config is required")

	w = post(t, "/report", exportCSV, `{"date_column":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, "/report", exportCSV, `{"date_column":"Fecha del despliegue","parse_mode":"slice7","year":1999}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "year without data")

	w = post(t, "/report", "", `{"date_column":"Fecha del despliegue"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeLoadFailed)
}
