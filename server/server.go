package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"promocopy/agent"
)

// DefaultMaxUploadBytes 限制单次请求上传图片的总大小。
const DefaultMaxUploadBytes = 32 << 20

// Runner 执行一次完整的生成流水线。
type Runner interface {
	Run(ctx context.Context, s agent.State) (agent.Result, error)
}

type Options struct {
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type Server struct {
	pipeline  Runner
	maxUpload int64
	logger    *zap.Logger
}

func New(pipeline Runner, opts Options) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Server{pipeline: pipeline, maxUpload: maxUpload, logger: logger.Named("server")}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type generateReq struct {
	Requirements string   `json:"requirements"`
	Description  string   `json:"description"`
	Platform     string   `json:"platform"`
	Style        string   `json:"style"`
	Images       [][]byte `json:"images"` // base64 in JSON bodies
}

type generateMeta struct {
	Platform  string   `json:"platform"`
	Style     string   `json:"style"`
	RequestID string   `json:"request_id"`
	Path      []string `json:"path"`
}

type generateResp struct {
	Copy               string       `json:"copy"`
	CopyHTML           string       `json:"copy_html"`
	ImagePrompts       []string     `json:"image_prompts,omitempty"`
	GeneratedImages    []string     `json:"generated_images,omitempty"`
	OutputSafetyPassed bool         `json:"output_safety_passed"`
	Metadata           generateMeta `json:"metadata"`
	Error              string       `json:"error,omitempty"`
}

type errorResp struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	req, err := s.decodeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Requirements) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "requirements is required"})
		return
	}

	state := agent.NewState(agent.Request{
		Requirements: req.Requirements,
		Description:  req.Description,
		Images:       req.Images,
		Platform:     req.Platform,
		Style:        req.Style,
	})
	res, err := s.pipeline.Run(r.Context(), state)
	if err != nil {
		s.logger.Error("pipeline failed", zap.String("request_id", res.RequestID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}

	final := res.State
	if res.Rejected || final.InputRejected() {
		reason := final.SafetyRejectReason
		if reason == "" {
			reason = "Input failed safety check"
		}
		writeJSON(w, http.StatusBadRequest, errorResp{Error: reason})
		return
	}

	writeJSON(w, http.StatusOK, s.buildResponse(res))
}

func (s *Server) buildResponse(res agent.Result) generateResp {
	final := res.State
	copyText := final.Copy()
	html, err := markdownToHTML(copyText)
	if err != nil {
		s.logger.Warn("render copy html", zap.Error(err))
	}

	path := make([]string, 0, len(res.Path))
	for _, st := range res.Path {
		path = append(path, string(st))
	}

	resp := generateResp{
		Copy:               copyText,
		CopyHTML:           html,
		ImagePrompts:       final.ImagePrompts,
		OutputSafetyPassed: final.OutputSafetyPassed == nil || *final.OutputSafetyPassed,
		Metadata: generateMeta{
			Platform:  final.Platform,
			Style:     final.Style,
			RequestID: res.RequestID,
			Path:      path,
		},
	}
	for _, img := range final.GeneratedImages {
		resp.GeneratedImages = append(resp.GeneratedImages, base64.StdEncoding.EncodeToString(img))
	}
	if !resp.OutputSafetyPassed {
		resp.Error = final.SafetyRejectReason
	}
	return resp
}

// decodeRequest 支持 multipart 表单（images 为文件字段）和 JSON 两种请求体。
func (s *Server) decodeRequest(r *http.Request) (generateReq, error) {
	var req generateReq
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, err
	}
	req.Requirements = r.FormValue("requirements")
	req.Description = r.FormValue("description")
	req.Platform = r.FormValue("platform")
	req.Style = r.FormValue("style")

	if r.MultipartForm == nil {
		return req, nil
	}
	for _, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			return req, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return req, err
		}
		req.Images = append(req.Images, data)
	}
	return req, nil
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
