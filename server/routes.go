package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/wbrown/gpt2_bpe"
	"github.com/wbrown/gpt2_bpe/generate"
	"github.com/wbrown/gpt2_bpe/types"
)

const defaultNumToken = 1

// Server serves one tokenizer and one generator. Generations beyond the
// semaphore's weight wait for a slot.
type Server struct {
	encoder   *gpt2_bpe.GPTEncoder
	generator *generate.Generator
	sem       *semaphore.Weighted
}

func New(encoder *gpt2_bpe.GPTEncoder, generator *generate.Generator,
	numParallel uint) *Server {
	if numParallel == 0 {
		numParallel = 1
	}
	return &Server{
		encoder:   encoder,
		generator: generator,
		sem:       semaphore.NewWeighted(int64(numParallel)),
	}
}

func (s *Server) GenerateRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.HandleMethodNotAllowed = true

	r.GET("/api/health", s.HealthHandler)
	r.POST("/api/generate", s.GenerateHandler)
	r.POST("/api/tokenize", s.TokenizeHandler)
	r.POST("/api/detokenize", s.DetokenizeHandler)
	return r
}

// Serve blocks until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srvr := &http.Server{
		Handler:           s.GenerateRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srvr.Serve(ln)
	}()
	slog.Info("listening", "addr", ln.Addr().String())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer cancel()
		if err := srvr.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok",
		"vocab_size": s.encoder.VocabSize()})
}

func (s *Server) GenerateHandler(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			ErrorResponse{Error: err.Error()})
		return
	}
	n := defaultNumToken
	if req.N != nil {
		n = *req.N
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("aborting generate request due to client closing " +
				"the connection")
		} else {
			slog.Error("failed to acquire semaphore", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable,
			ErrorResponse{Error: err.Error()})
		return
	}
	defer s.sem.Release(1)

	result, err := s.generator.Generate(c.Request.Context(), req.Prompt, n)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{
		Text:         result.Text,
		Tokens:       toInts(result.Tokens),
		PromptTokens: result.PromptLength,
	})
}

func (s *Server) TokenizeHandler(c *gin.Context) {
	var req TokenizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			ErrorResponse{Error: err.Error()})
		return
	}
	tokens, err := s.encoder.Encode(req.Text)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, TokenizeResponse{Tokens: toInts(tokens)})
}

func (s *Server) DetokenizeHandler(c *gin.Context) {
	var req DetokenizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			ErrorResponse{Error: err.Error()})
		return
	}
	tokens, err := s.encoder.TokensFromInts(req.Tokens)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	text, err := s.encoder.Decode(tokens)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, DetokenizeResponse{Text: text})
}

// statusFor maps caller mistakes to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gpt2_bpe.ErrUnknownId),
		errors.Is(err, generate.ErrEmptyPrompt),
		errors.Is(err, generate.ErrContextOverflow),
		errors.Is(err, generate.ErrNegativeNumToken):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toInts(tokens types.Tokens) []int64 {
	ints := make([]int64, len(tokens))
	for idx, token := range tokens {
		ints[idx] = int64(token)
	}
	return ints
}
