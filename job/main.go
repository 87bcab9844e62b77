package main

import (
	"campaigner/config"
	"campaigner/dep"
	"campaigner/handler"
	"campaigner/job/record_events"
	"campaigner/job/run_campaigns"
	"campaigner/job/sync_campaigns"
	"campaigner/pkg/logutil"
	"campaigner/pkg/mq"
	"campaigner/pkg/service"
	"campaigner/repo"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

func main() {
	daemon := flag.Bool("daemon", false, "keep running and execute jobs on a schedule")
	flag.Parse()

	var (
		opt = config.NewOptions()
		ctx = logutil.InitZeroLog(context.Background(), "DEBUG")
	)

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		opt.ConfigPath = configPath
	}

	cfg := config.NewConfig()
	if err := cfg.Load(ctx, opt.ConfigPath); err != nil {
		log.Ctx(ctx).Error().Msgf("load config failed: %v", err)
		os.Exit(1)
	}

	// base repo
	baseRepo, err := repo.NewBaseRepo(ctx, cfg.MetadataDB)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init base repo failed, err: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := baseRepo.Close(ctx); err != nil {
			log.Ctx(ctx).Error().Msgf("close base repo failed, err: %v", err)
		}
	}()

	var (
		campaignRepo  = repo.NewCampaignRepo(ctx, baseRepo)
		batchRepo     = repo.NewBatchRepo(ctx, baseRepo)
		recipientRepo = repo.NewRecipientRepo(ctx, baseRepo)
		contentRepo   = repo.NewContentRepo(ctx, baseRepo)
		audienceRepo  = repo.NewAudienceRepo(ctx, baseRepo)
		eventRepo     = repo.NewEventRepo(ctx, baseRepo)
		baseCache     = repo.NewBaseCache(ctx)
	)

	var producer *mq.Producer
	if cfg.EventStream.Enabled {
		producer, err = mq.NewProducer(ctx, cfg.EventStream.Producer)
		if err != nil {
			log.Ctx(ctx).Error().Msgf("init producer failed, err: %v", err)
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Ctx(ctx).Error().Msgf("close producer failed, err: %v", err)
			}
		}()
	}

	audienceHandler := handler.NewAudienceHandler(audienceRepo, baseCache)
	dispatchHandler := handler.NewDispatchHandler(
		cfg,
		baseRepo,
		campaignRepo,
		batchRepo,
		recipientRepo,
		contentRepo,
		audienceHandler,
		func(ctx context.Context) (dep.EmailService, error) {
			return dep.NewEmailService(ctx, cfg.Resend)
		},
		producer,
	)

	jobs := map[string]service.Job{
		"run-campaigns":  run_campaigns.New(campaignRepo, dispatchHandler),
		"sync-campaigns": sync_campaigns.New(campaignRepo, dispatchHandler),
		"record-events":  record_events.New(cfg, eventRepo),
	}

	if *daemon {
		runDaemon(ctx, jobs)
		return
	}

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run main.go [-daemon] <job_name>")
		os.Exit(1)
	}

	jobName := flag.Arg(0)
	job, exists := jobs[jobName]
	if !exists {
		log.Ctx(ctx).Error().Msgf("job %s not found", jobName)
		os.Exit(1)
	}

	// let a long-running job stop on SIGINT/SIGTERM
	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := job.Init(runCtx); err != nil {
		log.Ctx(ctx).Error().Msgf("init job err: %v", err)
		os.Exit(1)
	}

	if err := job.Run(runCtx); err != nil {
		log.Ctx(ctx).Error().Msgf("run job err: %v", err)
		os.Exit(1)
	}

	if err := job.CleanUp(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("cleanup job err: %v", err)
		os.Exit(1)
	}

	log.Ctx(ctx).Info().Msg("job executed successfully")
}

// runDaemon keeps the process alive, promotes due campaigns and sweeps
// delivery state every minute, and tails the event stream when enabled.
func runDaemon(ctx context.Context, jobs map[string]service.Job) {
	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runJob := func(name string) func() {
		return func() {
			job := jobs[name]
			if err := job.Init(runCtx); err != nil {
				log.Ctx(runCtx).Error().Msgf("init %s err: %v", name, err)
				return
			}
			if err := job.Run(runCtx); err != nil {
				log.Ctx(runCtx).Error().Msgf("run %s err: %v", name, err)
			}
			if err := job.CleanUp(runCtx); err != nil {
				log.Ctx(runCtx).Error().Msgf("cleanup %s err: %v", name, err)
			}
		}
	}

	c := cron.New()
	if _, err := c.AddFunc("* * * * *", runJob("run-campaigns")); err != nil {
		log.Ctx(ctx).Error().Msgf("schedule run-campaigns err: %v", err)
		os.Exit(1)
	}
	if _, err := c.AddFunc("* * * * *", runJob("sync-campaigns")); err != nil {
		log.Ctx(ctx).Error().Msgf("schedule sync-campaigns err: %v", err)
		os.Exit(1)
	}
	c.Start()

	recordEvents := jobs["record-events"]
	if err := recordEvents.Init(runCtx); err != nil {
		if err != record_events.ErrEventStreamDisabled {
			log.Ctx(runCtx).Error().Msgf("init record-events err: %v", err)
		}
	} else {
		go func() {
			if err := recordEvents.Run(runCtx); err != nil {
				log.Ctx(runCtx).Error().Msgf("run record-events err: %v", err)
			}
		}()
	}

	<-runCtx.Done()

	<-c.Stop().Done()
	if err := recordEvents.CleanUp(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("cleanup record-events err: %v", err)
	}

	log.Ctx(ctx).Info().Msg("daemon stopped")
}
