// Command schedulerdemo exposes the scheduler over HTTP for local
// experimentation: register a task, poll its status, cancel it, watch
// aggregate stats.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	taskscheduler "github.com/swarmguard/taskscheduler"
	"github.com/swarmguard/taskscheduler/internal/logging"
	"github.com/swarmguard/taskscheduler/internal/otelinit"
)

type addTaskRequest struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Data          interface{} `json:"data"`
	Priority      string      `json:"priority"`
	Dependencies  []string    `json:"depends_on"`
	RetryCount    int         `json:"retry_count"`
	RetryStrategy string      `json:"retry_strategy"`
	TimeoutMS     int         `json:"timeout_ms"`
	Interruptible bool        `json:"interruptible"`
}

func parsePriority(s string) taskscheduler.Priority {
	switch strings.ToUpper(s) {
	case "HIGH":
		return taskscheduler.HIGH
	case "LOW":
		return taskscheduler.LOW
	default:
		return taskscheduler.NORMAL
	}
}

func parseRetryStrategy(s string) taskscheduler.RetryStrategy {
	switch strings.ToUpper(s) {
	case "FIXED":
		return taskscheduler.FIXED
	case "EXPONENTIAL":
		return taskscheduler.EXPONENTIAL
	default:
		return taskscheduler.IMMEDIATE
	}
}

// registerDemoExecutors wires a couple of toy task types so the demo host is
// usable without a caller supplying its own executors: "echo" returns its
// payload immediately, "sleep" simulates work for data["ms"] milliseconds
// while reporting progress.
func registerDemoExecutors(sc *taskscheduler.Scheduler) {
	sc.RegisterExecutor("echo", func(ctx context.Context, data interface{}, rt *taskscheduler.TaskContext) (interface{}, error) {
		return data, nil
	})

	sc.RegisterExecutor("sleep", func(ctx context.Context, data interface{}, rt *taskscheduler.TaskContext) (interface{}, error) {
		ms := 50
		if m, ok := data.(map[string]interface{}); ok {
			if v, ok := m["ms"].(float64); ok {
				ms = int(v)
			}
		}
		steps := 5
		step := time.Duration(ms/steps) * time.Millisecond
		for i := 1; i <= steps; i++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(step):
			}
			rt.ReportProgress(float64(i) / float64(steps))
		}
		return "slept", nil
	})
}

func main() {
	service := "schedulerdemo"
	logging.Init(service)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics := otelinit.InitMetrics(ctx, service)

	sc := taskscheduler.New(taskscheduler.Options{})
	registerDemoExecutors(sc)
	sc.Start()

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req addTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		id, err := sc.AddTask(taskscheduler.TaskDescriptor{
			ID:            req.ID,
			Type:          req.Type,
			Data:          req.Data,
			Priority:      parsePriority(req.Priority),
			Dependencies:  req.Dependencies,
			RetryCount:    req.RetryCount,
			RetryStrategy: parseRetryStrategy(req.RetryStrategy),
			Timeout:       time.Duration(req.TimeoutMS) * time.Millisecond,
			Interruptible: req.Interruptible,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("/v1/tasks/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
		if id == "" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			status := sc.GetTaskStatus(id)
			if status == taskscheduler.Unknown {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "status": string(status)})
		case http.MethodDelete:
			ok := sc.CancelTask(id)
			_ = json.NewEncoder(w).Encode(map[string]bool{"cancelled": ok})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sc.GetStats())
	})

	srv := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()
	slog.Info("service started")
	<-ctx.Done()
	slog.Info("shutdown initiated")

	sc.Stop()

	ctxSd, c2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer c2()
	_ = srv.Shutdown(ctxSd)
	otelinit.Flush(ctxSd, shutdownTrace)
	_ = shutdownMetrics(ctxSd)
	slog.Info("shutdown complete")
}
