package ui

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"treblereport/adapters/excel"
	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/errors"
	"treblereport/internal/months"
	"treblereport/internal/report"
	"treblereport/internal/session"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"MaxUploadMB":     s.cfg.Upload.MaxUploadMB,
		"DefaultEncoding": s.cfg.Upload.DefaultEncoding,
		"Encodings": []string{
			string(excel.EncodingUTF8), string(excel.EncodingLatin1),
			string(excel.EncodingCP1252), string(excel.EncodingUTF16),
		},
		"ParseModes": []dataset.ParseModeKind{
			dataset.ModeAutoInfer, dataset.ModeDayFirst, dataset.ModeMonthFirst,
			dataset.ModeISOStrict, dataset.ModeSliceFirst7, dataset.ModeRegexExtract,
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	list, _ := s.sessions.List(c.Request.Context())
	entries, hits, misses := s.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(list),
		"cache":    gin.H{"entries": entries, "hits": hits, "misses": misses},
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, errors.InvalidInput("multipart field \"file\" is required"))
		return
	}
	if fh.Size > s.cfg.Upload.MaxBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d MB", s.cfg.Upload.MaxUploadMB),
			"code":  errors.CodeInvalidInput,
		})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, errors.LoadFailed(err))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		respondError(c, errors.LoadFailed(err))
		return
	}

	opts, err := s.loadOptions(fh.Filename, req)
	if err != nil {
		respondError(c, err)
		return
	}

	key := session.Key(data, opts.CacheKey())
	table, err := s.cache.GetOrLoad(key, func() (*dataset.Table, error) {
		return excel.NewDataReader(opts).ReadBytes(data)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	sess, err := s.sessions.Create(c.Request.Context(), fh.Filename, key, table)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, datasetResponse(sess))
}

func (s *Server) loadOptions(fileName string, req UploadRequest) (excel.LoadOptions, error) {
	encName := req.Encoding
	if encName == "" {
		encName = s.cfg.Upload.DefaultEncoding
	}
	enc, err := excel.ParseEncoding(encName)
	if err != nil {
		return excel.LoadOptions{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	delim, err := excel.ParseDelimiter(req.Delimiter)
	if err != nil {
		return excel.LoadOptions{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	fix := s.cfg.Upload.FixMojibake
	if req.FixMojibake != nil {
		fix = *req.FixMojibake
	}
	return excel.LoadOptions{
		FileName:    fileName,
		Delimiter:   delim,
		Encoding:    enc,
		Sheet:       req.Sheet,
		FixMojibake: fix,
	}, nil
}

func (s *Server) handleGetDataset(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, datasetResponse(sess))
}

func (s *Server) handleDeleteDataset(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.NotFound("session "+c.Param("id")))
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMonths(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var q MonthsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	req := report.Request{
		DateColumn:       q.DateColumn,
		FallbackColumn:   q.FallbackColumn,
		ParseMode:        q.ParseMode,
		RegexPattern:     q.RegexPattern,
		StrictMonthRange: q.StrictMonthRange,
	}
	cfg, err := req.Config(s.defaults)
	if err != nil {
		respondError(c, err)
		return
	}
	ct, err := months.Canonicalize(sess.Table, cfg.Months)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := MonthsResponse{
		Years:       months.Years(ct),
		Months:      make(map[int][]MonthOption),
		ValidRows:   ct.Len(),
		InvalidRows: ct.Invalid,
	}
	for _, y := range resp.Years {
		for _, m := range months.MonthsOfYear(ct, y) {
			resp.Months[y] = append(resp.Months[y], MonthOption{Month: m, Key: months.Key(y, m), Label: months.MonthLabel(m)})
		}
	}
	resp.DefaultYear, resp.DefaultMonth, _ = months.DefaultSelection(ct)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req report.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	cfg, err := req.Config(s.defaults)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := report.Build(sess.Table, cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.sessions.SetReport(c.Request.Context(), sess.ID, cfg, res); err != nil {
		respondError(c, err)
		return
	}

	f := report.NewFormatter(req.LocaleOr(s.defaults.Locale))
	c.JSON(http.StatusOK, ReportResponse{
		Report:         res,
		DisplayHeaders: report.DisplayHeaders,
		KPIsDisplay:    f.DisplayKPIs(res.KPIs),
		Locale:         f.Locale(),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if sess.Report == nil {
		respondError(c, errors.InvalidInput("build a report before exporting"))
		return
	}
	var q ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	res := sess.Report
	locale := q.Locale
	if locale == "" {
		locale = s.defaults.Locale
	}
	f := report.NewFormatter(locale)

	var (
		buf         bytes.Buffer
		name        string
		contentType string
		err         error
	)
	switch kind := c.Param("kind"); kind {
	case "csv":
		delim, perr := excel.ParseDelimiter(q.Delimiter)
		if perr != nil {
			respondError(c, errors.WithCode(errors.CodeInvalidInput, perr))
			return
		}
		name, contentType = excel.MonthCSVName(res.SelectedMonth), "text/csv; charset=utf-8"
		err = excel.WriteMonthCSV(&buf, res.MonthRows, delim)
	case "counts":
		ft, found := frequencyFor(res, q.Column)
		if !found {
			respondError(c, errors.NotFound(fmt.Sprintf("count table for column %q", q.Column)))
			return
		}
		name, contentType = excel.FrequencyCSVName(ft.Column), "text/csv; charset=utf-8"
		err = excel.WriteFrequencyCSV(&buf, ft)
	case "zip":
		name, contentType = excel.CountsZipName(res.SelectedMonth), "application/zip"
		err = excel.WriteFrequencyZIP(&buf, res.Frequencies)
	case "xlsx":
		name, contentType = excel.WorkbookName(res.SelectedMonth), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = excel.WriteWorkbook(&buf, res, f)
	case "html":
		name, contentType = excel.ReportHTMLName(res.SelectedMonth), "text/html; charset=utf-8"
		_, err = buf.Write(report.HTML(res, f))
	case "md":
		name, contentType = "resumen_"+res.SelectedMonth+".md", "text/markdown; charset=utf-8"
		_, err = buf.WriteString(report.Markdown(res, f))
	default:
		respondError(c, errors.NotFound("export kind "+kind))
		return
	}
	if err != nil {
		respondError(c, errors.Wrap(err, "failed to write export"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// session resolves the :id parameter, writing the error response when it fails
func (s *Server) session(c *gin.Context) (session.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.NotFound("session "+c.Param("id")))
		return session.Session{}, false
	}
	sess, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return session.Session{}, false
	}
	return sess, true
}

func frequencyFor(res *report.Result, column string) (dataset.FrequencyTable, bool) {
	for _, ft := range res.Frequencies {
		if ft.Column == column {
			return ft, true
		}
	}
	return dataset.FrequencyTable{}, false
}

var logger = internal.DefaultLogger.With("API")

func respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
