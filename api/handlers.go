package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/spool/dispatch"
	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/tape"
)

// DispatchIDHeader carries the dispatch id (and tape id) of a streamed
// dispatch response.
const DispatchIDHeader = "X-Spool-Dispatch-Id"

// defaultListLimit caps GET /v1/tapes when no limit is given.
const defaultListLimit = 50

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Symbol string `json:"symbol,omitempty"`
}

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Vendor   string            `json:"vendor" validate:"required"`
	Endpoint string            `json:"endpoint,omitempty" validate:"omitempty,url"`
	Model    string            `json:"model,omitempty"`
	Body     json.RawMessage   `json:"body" validate:"required"`
	Options  map[string]string `json:"options,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// TapeSummary describes a tape without its frames.
type TapeSummary struct {
	ID          string       `json:"id"`
	Vendor      string       `json:"vendor"`
	Model       string       `json:"model,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Frames      int          `json:"frames"`
	Outcome     string       `json:"outcome"`
	Metadata    llm.Metadata `json:"metadata"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleVendors(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"vendors": s.dispatcher.Vendors(),
	})
}

// handleDispatch starts a dispatch and streams its actions back as NDJSON
// envelopes, one per line.
func (s *Server) handleDispatch(c *fiber.Ctx) error {
	var req DispatchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid JSON body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	apiKey, err := s.apiKey(c, req.Vendor)
	if err != nil {
		s.logger.Error("resolving api key", "vendor", req.Vendor, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to resolve credentials"})
	}

	headers := req.Headers
	for k, v := range s.headerHandler.ForwardedHeaders(c) {
		if headers == nil {
			headers = make(map[string]string)
		}
		headers[k] = v
	}

	access := llm.Access{
		Vendor:   req.Vendor,
		Endpoint: req.Endpoint,
		APIKey:   apiKey,
		Headers:  headers,
		Options:  req.Options,
	}

	// fasthttp recycles its RequestCtx after the handler returns, but the
	// stream keeps running in the pipe goroutine.
	stream, err := s.dispatcher.Dispatch(context.Background(), access, llm.GenerateRequest{
		Model: req.Model,
		Body:  req.Body,
	})
	if err != nil {
		var uv *dispatch.UnsupportedVendorError
		if errors.As(err, &uv) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: uv.Error(), Symbol: uv.Symbol()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "dispatch failed"})
	}

	s.logger.Debug("streaming dispatch",
		"dispatch_id", stream.ID(),
		"vendor", req.Vendor,
		"model", req.Model,
	)

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(DispatchIDHeader, stream.ID())

	// io.Pipe gives per-line backpressure: fasthttp flushes every chunk it
	// reads from the pipe to the socket.
	pr, pw := io.Pipe()
	go s.pipeActions(stream, pw)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pipeActions encodes every action of stream onto pw. A write error means
// the client went away, which cancels the dispatch.
func (s *Server) pipeActions(stream *dispatch.Stream, pw *io.PipeWriter) {
	defer pw.Close()
	defer stream.Close()

	enc := json.NewEncoder(pw)
	for a := range stream.All() {
		if err := enc.Encode(NewEnvelope(a)); err != nil {
			s.logger.Debug("client disconnected",
				"dispatch_id", stream.ID(),
				"error", err,
			)
			return
		}
	}
}

// apiKey prefers the client's bearer token and falls back to the key
// source.
func (s *Server) apiKey(c *fiber.Ctx, vendor string) (string, error) {
	if token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok && token != "" {
		return token, nil
	}
	if s.keys == nil {
		return "", nil
	}
	return s.keys.Resolve(vendor)
}

func (s *Server) handleListTapes(c *fiber.Ctx) error {
	if s.recorder == nil {
		return recordingDisabled(c)
	}

	limit := c.QueryInt("limit", defaultListLimit)
	tapes, err := s.recorder.List(c.Context(), limit)
	if err != nil {
		s.logger.Error("listing tapes", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list tapes"})
	}

	summaries := make([]TapeSummary, 0, len(tapes))
	for _, t := range tapes {
		summaries = append(summaries, summarize(t))
	}

	return c.JSON(map[string]any{
		"count": len(summaries),
		"tapes": summaries,
	})
}

func (s *Server) handleGetTape(c *fiber.Ctx) error {
	t, err := s.tape(c)
	if t == nil {
		return err
	}
	return c.JSON(t)
}

// handleReplayTape re-runs a tape's frames through its vendor parser.
func (s *Server) handleReplayTape(c *fiber.Ctx) error {
	t, err := s.tape(c)
	if t == nil {
		return err
	}

	actions, err := tape.Replay(c.Context(), t, s.dispatcher.Policy())
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
	}

	envelopes := make([]Envelope, 0, len(actions))
	for _, a := range actions {
		envelopes = append(envelopes, NewEnvelope(a))
	}

	return c.JSON(map[string]any{
		"id":      t.ID,
		"actions": envelopes,
	})
}

// tape loads the tape named by the :id param. A nil tape means the error
// response has been written and err is the result of writing it.
func (s *Server) tape(c *fiber.Ctx) (*tape.Tape, error) {
	if s.recorder == nil {
		return nil, recordingDisabled(c)
	}

	id := c.Params("id")
	if id == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	t, err := s.recorder.Get(c.Context(), id)
	if err != nil {
		var nf tape.NotFoundError
		if errors.As(err, &nf) {
			return nil, c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "tape not found"})
		}
		s.logger.Error("loading tape", "id", id, "error", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load tape"})
	}

	return t, nil
}

func recordingDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "tape recording is disabled"})
}

func summarize(t *tape.Tape) TapeSummary {
	return TapeSummary{
		ID:          t.ID,
		Vendor:      t.Vendor,
		Model:       t.Model,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Frames:      len(t.Frames),
		Outcome:     t.Outcome,
		Metadata:    t.Metadata,
	}
}
