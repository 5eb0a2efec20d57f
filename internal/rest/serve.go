// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/pixfilter/internal/filter"
	"github.com/mlnoga/pixfilter/internal/ops"
	"github.com/mlnoga/pixfilter/internal/ops/info"
	_ "github.com/mlnoga/pixfilter/internal/ops/transform" // registers filter operators for /run
	"github.com/mlnoga/pixfilter/internal/pixmap"
	"github.com/mlnoga/pixfilter/internal/stats"
)

// Upper bound for uploaded image bodies
const maxBodyBytes = 256 << 20

// Content type of returned pixmaps
const contentTypePixmap = "image/x-portable-pixmap"

// A server processing images with a given operator context
type Server struct {
	ctx *ops.Context
}

// Creates the request router, logging to the context's log writer
func NewRouter(c *ops.Context) *gin.Engine {
	s := &Server{ctx: c}
	r := gin.New()
	r.Use(gin.LoggerWithWriter(c.Log), gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/filters", getFilters)
			v1.POST("/filter/:name", s.postFilter)
			v1.POST("/stats", s.postStats)
			v1.POST("/run", s.postRun)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string, c *ops.Context) error {
	fmt.Fprintf(c.Log, "Listening on %s with %s\n", addr, c.Describe())
	return NewRouter(c).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func getFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"filters": filter.Names(),
	})
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, pixmap.ErrInvalidBuffer) || errors.Is(err, filter.ErrInvalidParameter) {
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// Reads an image from the request body and checks it against the memory budget
func (s *Server) readImage(c *gin.Context) (*pixmap.Image, error) {
	f, err := pixmap.Read(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if err = f.Validate(); err != nil {
		return nil, err
	}
	if err = s.ctx.CheckMemory(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Scalar filter parameters from the query string
type filterQuery struct {
	Red   int     `form:"r"`
	Green int     `form:"g"`
	Blue  int     `form:"b"`
	Sigma float64 `form:"sigma,default=1"`
}

// Applies the named filter to the pixmap in the request body, and returns the result
// in the text container format
func (s *Server) postFilter(c *gin.Context) {
	var q filterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, fmt.Errorf("%w: %s", filter.ErrInvalidParameter, err.Error()))
		return
	}
	p := filter.Params{Name: c.Param("name"), Red: q.Red, Green: q.Green, Blue: q.Blue, Sigma: q.Sigma}
	if _, err := filter.Select(p); err != nil {
		abortWithError(c, err)
		return
	}

	f, err := s.readImage(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	fmt.Fprintf(s.ctx.Log, "Applying %s to %s pixels with %d workers\n", p, f.DimensionsToString(), s.ctx.Workers)
	result, err := filter.Run(f, p, s.ctx.Workers)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Type", contentTypePixmap)
	c.Status(http.StatusOK)
	if err = result.Write(c.Writer); err != nil {
		fmt.Fprintf(s.ctx.Log, "Error writing response: %s\n", err.Error())
	}
}

// Returns statistics for the pixmap in the request body
func (s *Server) postStats(c *gin.Context) {
	f, err := s.readImage(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info.NewRecord(f, stats.DefaultMedianSamples))
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Runs a JSON operator sequence on files below the working directory, streaming the log
// output back as plain text
func (s *Server) postRun(c *gin.Context) {
	seq := ops.NewOpSequence()
	if err := c.ShouldBindJSON(seq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", seq); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	runCtx := *s.ctx
	runCtx.Log = &syncWriter{w: logWriter} // operators log from several goroutines
	runCtx.AllowAnyPath = false
	if err := ops.Run(seq, &runCtx); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	logWriter.Flush()
}

// Serializes writes to an underlying writer
type syncWriter struct {
	mutex sync.Mutex
	w     io.Writer
}

func (sw *syncWriter) Write(p []byte) (n int, err error) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	return sw.w.Write(p)
}
