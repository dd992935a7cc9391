package feed

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/intercept-engine/internal/logging"
)

// HTTPObserver records HTTP request outcomes.
type HTTPObserver interface {
	ObserveHTTP(route string, code int, d time.Duration)
}

// NewHTTPHandler serves the JSON surface of the feed:
//
//	GET /v1/frame               latest snapshot
//	GET /v1/bodies/{id}/path    sampled body path (?samples=N)
//	GET /v1/contacts/plan       predicted contact windows (?horizon=S&step=S)
//	GET /healthz                liveness
//	GET /metrics                Prometheus, when metrics is non-nil
func NewHTTPHandler(svc *Service, metrics http.Handler, obs HTTPObserver, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	h := &httpHandler{svc: svc, obs: obs, log: log}

	mux := http.NewServeMux()
	mux.Handle("GET /v1/frame", h.route("/v1/frame", h.frame))
	mux.Handle("GET /v1/bodies/{id}/path", h.route("/v1/bodies/{id}/path", h.bodyPath))
	mux.Handle("GET /v1/contacts/plan", h.route("/v1/contacts/plan", h.contactPlan))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

type httpHandler struct {
	svc *Service
	obs HTTPObserver
	log logging.Logger
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *httpHandler) route(name string, fn func(context.Context, *http.Request) (proto.Message, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := r.Header.Get("X-Request-Id"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, h.log.With(logging.String("route", name)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		msg, err := fn(ctx, r)
		if err != nil {
			writeError(rec, err)
		} else {
			writeJSON(rec, msg)
		}
		if h.obs != nil {
			h.obs.ObserveHTTP(name, rec.code, time.Since(start))
		}
	})
}

func (h *httpHandler) frame(ctx context.Context, _ *http.Request) (proto.Message, error) {
	return h.svc.GetFrame(ctx, &emptypb.Empty{})
}

func (h *httpHandler) bodyPath(ctx context.Context, r *http.Request) (proto.Message, error) {
	fields := map[string]any{"body_id": r.PathValue("id")}
	if raw := r.URL.Query().Get("samples"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "samples must be an integer")
		}
		fields["samples"] = float64(n)
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return h.svc.GetBodyPath(ctx, in)
}

func (h *httpHandler) contactPlan(ctx context.Context, r *http.Request) (proto.Message, error) {
	fields := map[string]any{}
	for _, key := range []string{"horizon", "step"} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
		}
		fields[key] = v
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return h.svc.GetContactPlan(ctx, in)
}

func writeJSON(w http.ResponseWriter, msg proto.Message) {
	body, err := protojson.Marshal(msg)
	if err != nil {
		writeError(w, ToStatusError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	st, _ := status.FromError(ToStatusError(err))
	body, _ := protojson.Marshal(st.Proto())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(st.Code()))
	_, _ = w.Write(body)
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Canceled:
		return 499
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
