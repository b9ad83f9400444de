package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"treblereport/adapters/excel"
	"treblereport/internal"
	"treblereport/internal/config"
	"treblereport/internal/errors"
	"treblereport/internal/report"
)

var logger = internal.DefaultLogger.With("API")

// api is a stateless one-shot report service: every request carries its own file
type api struct {
	cfg      *config.Config
	defaults report.Defaults
}

func newRouter(cfg *config.Config) http.Handler {
	a := &api{
		cfg: cfg,
		defaults: report.Defaults{
			ParseMode:       cfg.Report.DefaultParseMode,
			UniqueKeyColumn: cfg.Report.UniqueKeyColumn,
			Locale:          cfg.Report.Locale,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", a.handleHealth)
	r.Post("/report", a.handleReport)
	r.Post("/report/{kind}", a.handleReport)
	return r
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleReport reads a multipart upload with a "file" part and a "config" part holding a
// JSON report request. Without {kind} it answers JSON; with it, the matching export.
func (a *api) handleReport(w http.ResponseWriter, r *http.Request) {
	limit := a.cfg.Upload.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, errors.InvalidInput(fmt.Sprintf("invalid multipart upload: %v", err)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.InvalidInput("multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	if header.Size > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
			"error": fmt.Sprintf("file exceeds %d MB", a.cfg.Upload.MaxUploadMB),
			"code":  errors.CodeInvalidInput,
		})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errors.LoadFailed(err))
		return
	}

	var req report.Request
	if err := json.Unmarshal([]byte(r.FormValue("config")), &req); err != nil {
		writeError(w, errors.InvalidInput(fmt.Sprintf("config must be a JSON report request: %v", err)))
		return
	}
	cfg, err := req.Config(a.defaults)
	if err != nil {
		writeError(w, err)
		return
	}

	opts, err := a.loadOptions(header.Filename, r)
	if err != nil {
		writeError(w, err)
		return
	}
	table, err := excel.NewDataReader(opts).ReadBytes(data)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := report.Build(table, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	f := report.NewFormatter(req.LocaleOr(a.defaults.Locale))

	switch kind := chi.URLParam(r, "kind"); kind {
	case "":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"report":          res,
			"display_headers": report.DisplayHeaders,
			"kpis_display":    f.DisplayKPIs(res.KPIs),
			"locale":          f.Locale(),
		})
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", excel.WorkbookName(res.SelectedMonth)))
		if err := excel.WriteWorkbook(w, res, f); err != nil {
			logger.Error("Failed to write workbook: %v", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", excel.MonthCSVName(res.SelectedMonth)))
		if err := excel.WriteMonthCSV(w, res.MonthRows, opts.Delimiter); err != nil {
			logger.Error("Failed to write month CSV: %v", err)
		}
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(report.HTML(res, f))
	default:
		writeError(w, errors.NotFound("export kind "+kind))
	}
}

func (a *api) loadOptions(fileName string, r *http.Request) (excel.LoadOptions, error) {
	encName := r.FormValue("encoding")
	if encName == "" {
		encName = a.cfg.Upload.DefaultEncoding
	}
	enc, err := excel.ParseEncoding(encName)
	if err != nil {
		return excel.LoadOptions{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	delim, err := excel.ParseDelimiter(r.FormValue("delimiter"))
	if err != nil {
		return excel.LoadOptions{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	fix := a.cfg.Upload.FixMojibake
	if v := r.FormValue("fix_mojibake"); v != "" {
		fix, err = strconv.ParseBool(v)
		if err != nil {
			return excel.LoadOptions{}, errors.InvalidInput(fmt.Sprintf("fix_mojibake: %v", err))
		}
	}
	return excel.LoadOptions{
		FileName:    fileName,
		Delimiter:   delim,
		Encoding:    enc,
		Sheet:       r.FormValue("sheet"),
		FixMojibake: fix,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
