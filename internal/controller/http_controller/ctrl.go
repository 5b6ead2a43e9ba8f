package http_controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/horockey/svcreg/internal/controller/http_controller/dto"
	"github.com/horockey/svcreg/internal/processor"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const shutdownTimeout = time.Second

type HttpController struct {
	serv    *http.Server
	apiKey  string
	proc    *processor.Processor
	logger  zerolog.Logger
	metrics *metrics
}

func New(
	addr string,
	apiKey string,
	logger zerolog.Logger,
) *HttpController {
	ctrl := HttpController{
		serv: &http.Server{
			Addr: addr,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotImplemented)
			}),
		},
		apiKey:  apiKey,
		logger:  logger,
		metrics: newMetrics(),
	}

	router := mux.NewRouter()
	if ctrl.serv.Handler != nil {
		router.NotFoundHandler = ctrl.serv.Handler
	}

	router.HandleFunc("/services", ctrl.postServiceHandler).Methods(http.MethodPost)
	router.HandleFunc("/services", ctrl.getServicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/services/{service}/{instance}", ctrl.deleteInstanceHandler).Methods(http.MethodDelete)
	router.HandleFunc("/services/{service}/{instance}/heartbeat", ctrl.postHeartbeatHandler).Methods(http.MethodPost)
	router.HandleFunc("/stats", ctrl.getStatsHandler).Methods(http.MethodGet)
	router.Use(ctrl.metricsMW, ctrl.authMW)

	ctrl.serv.Handler = router

	return &ctrl
}

func (ctrl *HttpController) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

func (ctrl *HttpController) Start(ctx context.Context, pr *processor.Processor) (resErr error) {
	ctrl.proc = pr
	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *HttpController) metricsMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctrl.metrics.requestsCnt.Inc()
		defer func(ts time.Time) {
			ctrl.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		}(time.Now())

		next.ServeHTTP(w, req)
	})
}

func (ctrl *HttpController) authMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-Api-Key") != ctrl.apiKey {
			ctrl.metrics.errProcessCnt.Inc()
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (ctrl *HttpController) postServiceHandler(w http.ResponseWriter, req *http.Request) {
	dtoReg := dto.Registration{}
	if err := json.NewDecoder(req.Body).Decode(&dtoReg); err != nil {
		ctrl.metrics.errProcessCnt.Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("decoding body dto: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return
	}

	ep, err := ctrl.proc.Register(dto.RegistrationToModel(dtoReg))
	if err != nil {
		ctrl.metrics.errProcessCnt.Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("registering endpoint: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return
	}

	ctrl.metrics.successProcessCnt.Inc()
	_ = http_helpers.RespondOK(w, dto.NewEndpoint(ep))
}

func (ctrl *HttpController) deleteInstanceHandler(w http.ResponseWriter, req *http.Request) {
	service, found := mux.Vars(req)["service"]
	if !found {
		ctrl.respondMissingVar(w, "service")
		return
	}
	instance, found := mux.Vars(req)["instance"]
	if !found {
		ctrl.respondMissingVar(w, "instance")
		return
	}

	if err := ctrl.proc.Deregister(service, instance); err != nil {
		ctrl.metrics.errProcessCnt.Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("deregistering endpoint: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, notFoundOrInternal(err), err)
		return
	}

	ctrl.metrics.successProcessCnt.Inc()
	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) postHeartbeatHandler(w http.ResponseWriter, req *http.Request) {
	service, found := mux.Vars(req)["service"]
	if !found {
		ctrl.respondMissingVar(w, "service")
		return
	}
	instance, found := mux.Vars(req)["instance"]
	if !found {
		ctrl.respondMissingVar(w, "instance")
		return
	}

	if err := ctrl.proc.Heartbeat(service, instance); err != nil {
		ctrl.metrics.errProcessCnt.Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("refreshing heartbeat: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, notFoundOrInternal(err), err)
		return
	}

	ctrl.metrics.successProcessCnt.Inc()
	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) getServicesHandler(w http.ResponseWriter, _ *http.Request) {
	ctrl.metrics.successProcessCnt.Inc()
	_ = http_helpers.RespondOK(w, dto.NewSnapshot(ctrl.proc.Snapshot()))
}

func (ctrl *HttpController) getStatsHandler(w http.ResponseWriter, _ *http.Request) {
	ctrl.metrics.successProcessCnt.Inc()
	_ = http_helpers.RespondOK(w, dto.NewStats(ctrl.proc.Stats()))
}

func (ctrl *HttpController) respondMissingVar(w http.ResponseWriter, name string) {
	ctrl.metrics.errProcessCnt.Inc()
	err := fmt.Errorf("missing %s", name)
	ctrl.logger.Error().Err(err).Send()
	_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
}

func notFoundOrInternal(err error) int {
	var svcErr endpoints.ServiceNotFoundError
	var instErr endpoints.InstanceNotFoundError
	if errors.As(err, &svcErr) || errors.As(err, &instErr) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
