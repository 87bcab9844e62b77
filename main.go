package main

import (
	"campaigner/config"
	"campaigner/dep"
	"campaigner/handler"
	"campaigner/middleware"
	"campaigner/pkg/errutil"
	"campaigner/pkg/httputil"
	"campaigner/pkg/logutil"
	"campaigner/pkg/mq"
	"campaigner/pkg/router"
	"campaigner/pkg/service"
	"campaigner/repo"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type server struct {
	ctx context.Context
	opt *config.Option
	cfg *config.Config

	baseRepo      repo.BaseRepo
	campaignRepo  repo.CampaignRepo
	batchRepo     repo.BatchRepo
	recipientRepo repo.RecipientRepo
	contentRepo   repo.ContentRepo
	audienceRepo  repo.AudienceRepo
	baseCache     repo.BaseCache
	fileRepo      repo.FileRepo

	producer *mq.Producer

	// api handlers
	audienceHandler handler.AudienceHandler
	dispatchHandler handler.DispatchHandler
	campaignHandler handler.CampaignHandler
}

func main() {
	s := new(server)
	if err := service.Run(s); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func (s *server) Init() error {
	opt := config.NewOptions()

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		opt.LogLevel = logLevel
	}

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		opt.ConfigPath = configPath
	}

	if serverPort := os.Getenv("PORT"); serverPort != "" {
		if port, err := strconv.Atoi(serverPort); err == nil {
			opt.Port = port
		}
	}

	s.opt = opt

	return nil
}

func (s *server) Start() error {
	var err error

	// ====== init logger ===== //

	s.ctx = logutil.InitZeroLog(context.Background(), s.opt.LogLevel)

	// ===== init config ===== //

	s.cfg = config.NewConfig()
	if err = s.cfg.Load(s.ctx, s.opt.ConfigPath); err != nil {
		log.Ctx(s.ctx).Error().Msgf("load config failed, err: %v", err)
		return err
	}

	// ===== init repos =====

	s.baseRepo, err = repo.NewBaseRepo(s.ctx, s.cfg.MetadataDB)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init base repo failed, err: %v", err)
		return err
	}
	defer func() {
		if err != nil && s.baseRepo != nil {
			if err := s.baseRepo.Close(s.ctx); err != nil {
				log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
				return
			}
		}
	}()

	s.campaignRepo = repo.NewCampaignRepo(s.ctx, s.baseRepo)
	s.batchRepo = repo.NewBatchRepo(s.ctx, s.baseRepo)
	s.recipientRepo = repo.NewRecipientRepo(s.ctx, s.baseRepo)
	s.contentRepo = repo.NewContentRepo(s.ctx, s.baseRepo)
	s.audienceRepo = repo.NewAudienceRepo(s.ctx, s.baseRepo)
	s.baseCache = repo.NewBaseCache(s.ctx)

	if s.cfg.Archive.Enabled {
		s.fileRepo, err = repo.NewFileRepo(s.ctx, s.cfg.Archive)
		if err != nil {
			log.Ctx(s.ctx).Error().Msgf("init file repo failed, err: %v", err)
			return err
		}
	}

	// ===== init producer ===== //

	if s.cfg.EventStream.Enabled {
		s.producer, err = mq.NewProducer(s.ctx, s.cfg.EventStream.Producer)
		if err != nil {
			log.Ctx(s.ctx).Error().Msgf("init producer failed, err: %v", err)
			return err
		}
	}

	// ===== init handlers ===== //

	s.audienceHandler = handler.NewAudienceHandler(s.audienceRepo, s.baseCache)
	s.dispatchHandler = handler.NewDispatchHandler(
		s.cfg,
		s.baseRepo,
		s.campaignRepo,
		s.batchRepo,
		s.recipientRepo,
		s.contentRepo,
		s.audienceHandler,
		func(ctx context.Context) (dep.EmailService, error) {
			return dep.NewEmailService(ctx, s.cfg.Resend)
		},
		s.producer,
	)
	s.campaignHandler = handler.NewCampaignHandler(
		s.campaignRepo,
		s.batchRepo,
		s.recipientRepo,
		s.contentRepo,
		s.audienceHandler,
		s.dispatchHandler,
		func(ctx context.Context) (dep.EmailService, error) {
			return dep.NewEmailService(ctx, s.cfg.Resend)
		},
		s.fileRepo,
	)

	// ===== start server ===== //

	go func() {
		addr := fmt.Sprintf(":%d", s.opt.Port)

		log.Info().Msgf("starting HTTP server at %s", addr)

		httpServer := &http.Server{
			BaseContext: func(_ net.Listener) context.Context {
				return s.ctx
			},
			Addr:    addr,
			Handler: middleware.Cors(middleware.Log(s.registerRoutes())),
		}
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fail to start HTTP server, err: %v", err)
		}
	}()

	return nil
}

func (s *server) Stop() error {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close producer failed, err: %v", err)
			return err
		}
	}

	if s.fileRepo != nil {
		if err := s.fileRepo.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close file repo failed, err: %v", err)
			return err
		}
	}

	if s.baseCache != nil {
		if err := s.baseCache.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base cache failed, err: %v", err)
			return err
		}
	}

	if s.baseRepo != nil {
		if err := s.baseRepo.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
			return err
		}
	}

	return nil
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct{}

func (s *server) registerRoutes() http.Handler {
	r := &router.HttpRouter{
		Router: mux.NewRouter(),
	}

	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathHealthCheck,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(HealthCheckRequest),
			Res: new(HealthCheckResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return nil
			},
		},
	})

	// estimate_recipients
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathEstimateRecipients,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.EstimateRecipientsRequest),
			Res: new(handler.EstimateRecipientsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.EstimateRecipients(ctx, req.(*handler.EstimateRecipientsRequest), res.(*handler.EstimateRecipientsResponse))
			},
		},
	})

	// create_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathCreateCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.CreateCampaignRequest),
			Res: new(handler.CreateCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.CreateCampaign(ctx, req.(*handler.CreateCampaignRequest), res.(*handler.CreateCampaignResponse))
			},
		},
	})

	// confirm_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathConfirmCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.ConfirmCampaignRequest),
			Res: new(handler.ConfirmCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.ConfirmCampaign(ctx, req.(*handler.ConfirmCampaignRequest), res.(*handler.ConfirmCampaignResponse))
			},
		},
	})

	// get_campaigns
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaigns,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.GetCampaignsRequest),
			Res: new(handler.GetCampaignsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetCampaigns(ctx, req.(*handler.GetCampaignsRequest), res.(*handler.GetCampaignsResponse))
			},
		},
	})

	// get_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaign,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetCampaignRequest),
			Res: new(handler.GetCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetCampaign(ctx, req.(*handler.GetCampaignRequest), res.(*handler.GetCampaignResponse))
			},
		},
	})

	// get_campaign_recipients
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaignRecipients,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.GetCampaignRecipientsRequest),
			Res: new(handler.GetCampaignRecipientsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetCampaignRecipients(ctx, req.(*handler.GetCampaignRecipientsRequest), res.(*handler.GetCampaignRecipientsResponse))
			},
		},
	})

	// sync_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathSyncCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.SyncCampaignRequest),
			Res: new(handler.SyncCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.SyncCampaign(ctx, req.(*handler.SyncCampaignRequest), res.(*handler.SyncCampaignResponse))
			},
		},
	})

	// export_campaign_recipients, streams a CSV attachment
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:       config.PathExportCampaignRecipients,
		Method:     http.MethodGet,
		RawHandler: s.exportCampaignRecipients,
	})

	return r
}

func (s *server) exportCampaignRecipients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := new(handler.ExportCampaignRecipientsRequest)
	if v := r.URL.Query().Get("content_id"); v != "" {
		contentID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid content_id")
			return
		}
		req.ContentID = &contentID
	}
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		campaignID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid campaign_id")
			return
		}
		req.CampaignID = &campaignID
	}

	fileName, data, err := s.campaignHandler.ExportCampaignRecipients(ctx, req)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("export campaign recipients err: %v", err)
		code, msg := errutil.ParseHttpError(err)
		httpError(w, code, msg)
		return
	}

	httputil.ReturnAttachment(w, fileName, "text/csv", data)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	http.Error(w, msg, code)
}
