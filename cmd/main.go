package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"insightai-sync/config"
	"insightai-sync/internal/alert"
	"insightai-sync/internal/insight"
	"insightai-sync/internal/ledger"
	"insightai-sync/internal/notify"
	"insightai-sync/internal/pricefeed"
	"insightai-sync/internal/reconcile"
	"insightai-sync/internal/store"
	"insightai-sync/internal/types"
	"insightai-sync/lib/translation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

type SyncMetrics struct {
	CyclesCompleted prometheus.Counter
	QuotesFetched   prometheus.Counter
	QuoteErrors     prometheus.Counter
	AlertsFired     prometheus.Counter
	PortfolioValue  prometheus.Gauge
	PortfolioPnL    prometheus.Gauge
}

var (
	metrics = NewSyncMetrics()
)

func init() {
	config.InitConfig()
	setupLogging()
}

func NewSyncMetrics() *SyncMetrics {
	metrics := &SyncMetrics{
		CyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insightai",
			Subsystem: "sync",
			Name:      "cycles_completed",
			Help:      "The total number of completed reconciliation cycles",
		}),
		QuotesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insightai",
			Subsystem: "sync",
			Name:      "quotes_fetched",
			Help:      "The total number of successfully fetched quotes",
		}),
		QuoteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insightai",
			Subsystem: "sync",
			Name:      "quote_errors",
			Help:      "The total number of failed quote fetches",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insightai",
			Subsystem: "sync",
			Name:      "alerts_fired",
			Help:      "The total number of triggered price alerts",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "insightai",
			Subsystem: "sync",
			Name:      "portfolio_value_usd",
			Help:      "The current total portfolio value in USD",
		}),
		PortfolioPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "insightai",
			Subsystem: "sync",
			Name:      "portfolio_pnl_usd",
			Help:      "The current total portfolio profit and loss in USD",
		}),
	}

	prometheus.MustRegister(metrics.CyclesCompleted)
	prometheus.MustRegister(metrics.QuotesFetched)
	prometheus.MustRegister(metrics.QuoteErrors)
	prometheus.MustRegister(metrics.AlertsFired)
	prometheus.MustRegister(metrics.PortfolioValue)
	prometheus.MustRegister(metrics.PortfolioPnL)

	return metrics
}

func main() {
	translation.Configure("locales", strings.ToLower(config.GetString("lang")))

	st, err := store.Open(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	LoadMetricsFromStore(st)

	cache := pricefeed.NewCache()
	strict := config.GetBool("strict_input")
	holdings := ledger.New(st, cache, strict)
	alerts := alert.NewBook(st, strict)

	notifier := buildNotifier()

	fetchTimeout := time.Duration(config.GetInt("fetch_timeout")) * time.Second
	insightClient := insight.NewClient(config.GetString("api_base_url"), fetchTimeout)

	var source pricefeed.Source
	switch config.GetString("price_source") {
	case "paprika":
		source = pricefeed.NewPaprikaSource(config.GetString("api_pro_key"))
	default:
		source = pricefeed.NewInsightSource(insightClient)
	}

	hooks := reconcile.Hooks{
		QuoteFetched: metrics.QuotesFetched.Inc,
		QuoteFailed:  metrics.QuoteErrors.Inc,
		AlertFired:   metrics.AlertsFired.Inc,
		CycleCompleted: func(summary types.PortfolioSummary) {
			metrics.CyclesCompleted.Inc()
			metrics.PortfolioValue.Set(summary.TotalValue)
			metrics.PortfolioPnL.Set(summary.TotalPnL)
		},
	}

	interval := time.Duration(config.GetInt("sync_interval")) * time.Second
	rec := reconcile.New(source, cache, holdings, alerts, notifier, interval, hooks)
	if config.GetBool("track_watchlist") {
		rec.ExtraSymbols = insightClient.Watchlist
	}
	rec.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if focus := config.GetString("focus_symbol"); focus != "" {
		stream := pricefeed.NewStream(config.GetString("ws_base_url"))
		go func() {
			for quote := range stream.Subscribe(ctx, focus) {
				rec.Observe(quote)
			}
		}()
	}

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToStore(st)
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		rec.Stop()
		cancel()
		SaveMetricsToStore(st)
		st.Close()
		log.Println("Metrics saved, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting sync engine...")
}

func buildNotifier() reconcile.Notifier {
	token := config.GetString("telegram_bot_token")
	chatID := config.GetInt64("telegram_chat_id")
	if token == "" || chatID == 0 {
		log.Debug("No telegram channel configured, notifications go to the log")
		return notify.Log{}
	}

	telegram, err := notify.NewTelegram(token, chatID)
	if err != nil {
		log.Errorf("Failed to create telegram notifier, falling back to log: %v", err)
		return notify.Log{}
	}
	return telegram
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func LoadMetricsFromStore(st *store.Store) {
	cyclesCompleted, _ := st.GetMetric("cycles_completed")
	quotesFetched, _ := st.GetMetric("quotes_fetched")
	quoteErrors, _ := st.GetMetric("quote_errors")
	alertsFired, _ := st.GetMetric("alerts_fired")

	metrics.CyclesCompleted.Add(cyclesCompleted)
	metrics.QuotesFetched.Add(quotesFetched)
	metrics.QuoteErrors.Add(quoteErrors)
	metrics.AlertsFired.Add(alertsFired)

	log.Println("Metrics loaded from store.")
}

func SaveMetricsToStore(st *store.Store) {
	st.SaveMetric("cycles_completed", GetMetricValue(metrics.CyclesCompleted))
	st.SaveMetric("quotes_fetched", GetMetricValue(metrics.QuotesFetched))
	st.SaveMetric("quote_errors", GetMetricValue(metrics.QuoteErrors))
	st.SaveMetric("alerts_fired", GetMetricValue(metrics.AlertsFired))

	log.Println("Metrics saved to store.")
}

func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Printf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
