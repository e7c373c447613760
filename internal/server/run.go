package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"base-distance/internal/calculator"
	"base-distance/internal/csvfile"
	"base-distance/internal/excel"
	"base-distance/internal/jobs"
	"base-distance/internal/models"
	"base-distance/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ModeLongLat = "longlat"
	ModeAddress = "address"
)

type runParams struct {
	mode        string
	basePath    string
	subbasePath string
	radius      float64
}

func (server *Server) run(c *gin.Context) {
	mode := c.DefaultPostForm("mode", ModeLongLat)
	if mode != ModeLongLat && mode != ModeAddress {
		c.JSON(http.StatusBadRequest, errorResponse("mode must be longlat or address"))
		return
	}
	if mode == ModeAddress && server.adapter == nil {
		c.JSON(http.StatusBadRequest, errorResponse("address lookup is not configured"))
		return
	}

	var radius float64
	if s := strings.TrimSpace(c.PostForm("radius")); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || r <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("radius must be a positive number of miles"))
			return
		}
		radius = r
	}

	baseFile, err := c.FormFile("base_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("please select the Base file"))
		return
	}
	subbaseFile, err := c.FormFile("subbase_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("please select the Subbase file"))
		return
	}

	// the trigger is disabled from the moment a run is accepted until its
	// job goroutine returns
	if server.orchestrator.Running() || !server.busy.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, errorResponse(pipeline.ErrRunInProgress.Error()))
		return
	}

	basePath, err := server.saveUpload(c, baseFile)
	if err != nil {
		server.busy.Store(false)
		c.JSON(http.StatusInternalServerError, errorResponse("could not store the Base file"))
		return
	}
	subbasePath, err := server.saveUpload(c, subbaseFile)
	if err != nil {
		server.busy.Store(false)
		c.JSON(http.StatusInternalServerError, errorResponse("could not store the Subbase file"))
		return
	}

	job := jobs.NewJob()
	server.jobs.Add(job)

	go server.processJob(job, runParams{
		mode:        mode,
		basePath:    basePath,
		subbasePath: subbasePath,
		radius:      radius,
	})

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job_id": job.ID})
}

func (server *Server) saveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	path := filepath.Join(server.config.UploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", err
	}
	return path, nil
}

func (server *Server) processJob(job *jobs.Job, params runParams) {
	defer server.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("job panicked")
			job.Fail(fmt.Sprintf("Panic: %v", r))
		}
	}()

	start := time.Now()
	sink := &resultFiles{dir: server.config.OutputDir, prefix: job.ID}
	req := pipeline.Request{
		Sink:     sink,
		Log:      job.Log,
		Progress: job.SetProgress,
	}

	var (
		res *pipeline.Result
		err error
	)
	switch params.mode {
	case ModeAddress:
		res, err = server.runAddresses(job, params, req)
	default:
		res, err = server.runLongLat(job, params, req)
	}
	if err != nil {
		job.Fail(describeRunError(err))
		return
	}

	result := &jobs.JobResult{
		Mode:     params.mode,
		Rows:     len(res.Assignments),
		Bases:    len(res.Base),
		Subbases: len(res.Subbase),
		Files:    sink.files,
	}

	if params.radius > 0 {
		pairs, err := calculator.WithinRadius(res.Matrix, res.Base, res.Subbase, params.radius)
		if err != nil {
			job.Fail(fmt.Sprintf("Radius search failed: %v", err))
			return
		}
		name := job.ID + "_radius.csv"
		if err := csvfile.WriteFile(filepath.Join(server.config.OutputDir, name), pairs); err != nil {
			job.Fail(fmt.Sprintf("Write failed: %v", err))
			return
		}
		job.Log(fmt.Sprintf("%d pairs within %.2f mi.", len(pairs), params.radius))
		result.Files = append(result.Files, name)
		result.RadiusPairs = len(pairs)
	}

	job.Log(fmt.Sprintf("Calculation completed. Duration: %s", time.Since(start)))
	job.Finish(result)
}

func (server *Server) runLongLat(job *jobs.Job, params runParams, req pipeline.Request) (*pipeline.Result, error) {
	base, err := excel.LoadPoints(params.basePath)
	if err != nil {
		return nil, fmt.Errorf("read Base file: %w", err)
	}
	logLoaded(job, pipeline.BaseSet, len(base))

	subbase, err := excel.LoadPoints(params.subbasePath)
	if err != nil {
		return nil, fmt.Errorf("read Subbase file: %w", err)
	}
	logLoaded(job, pipeline.SubbaseSet, len(subbase))

	req.Base = base
	req.Subbase = subbase
	return server.orchestrator.Run(req)
}

func (server *Server) runAddresses(job *jobs.Job, params runParams, req pipeline.Request) (*pipeline.Result, error) {
	baseRecords, err := excel.LoadAddresses(params.basePath)
	if err != nil {
		return nil, fmt.Errorf("read Base file: %w", err)
	}
	subbaseRecords, err := excel.LoadAddresses(params.subbasePath)
	if err != nil {
		return nil, fmt.Errorf("read Subbase file: %w", err)
	}
	job.Log(fmt.Sprintf("Address files loaded: %d base rows, %d subbase rows.", len(baseRecords), len(subbaseRecords)))

	res, _, err := server.orchestrator.RunAddresses(context.Background(), server.adapter, baseRecords, subbaseRecords, req)
	return res, err
}

func logLoaded(job *jobs.Job, set pipeline.SetKind, n int) {
	if n == 0 {
		job.Log(fmt.Sprintf("%s file is empty or invalid.", set.Label()))
		return
	}
	job.Log(fmt.Sprintf("%s file loaded with %d points.", set.Label(), n))
}

func describeRunError(err error) string {
	var ve *pipeline.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return fmt.Sprintf("Calculation failed: %v", err)
}

// resultFiles is the job's result sink: the closest-base export as CSV and XLSX.
type resultFiles struct {
	dir    string
	prefix string
	files  []string
}

func (s *resultFiles) Deliver(assignments []models.Assignment, _ calculator.Matrix) error {
	csvName := s.prefix + "_closest.csv"
	if err := csvfile.WriteFile(filepath.Join(s.dir, csvName), assignments); err != nil {
		return err
	}
	xlsxName := s.prefix + "_closest.xlsx"
	if err := excel.WriteResult(filepath.Join(s.dir, xlsxName), assignments, "Closest Bases"); err != nil {
		return err
	}
	s.files = append(s.files, csvName, xlsxName)
	return nil
}
