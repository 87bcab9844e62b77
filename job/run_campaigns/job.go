package run_campaigns

import (
	"campaigner/entity"
	"campaigner/handler"
	"campaigner/pkg/goutil"
	"campaigner/pkg/service"
	"campaigner/repo"
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RunCampaigns promotes scheduled campaigns whose send time has arrived
// and dispatches them.
type RunCampaigns struct {
	campaignRepo    repo.CampaignRepo
	dispatchHandler handler.DispatchHandler
}

func New(campaignRepo repo.CampaignRepo, dispatchHandler handler.DispatchHandler) service.Job {
	return &RunCampaigns{
		campaignRepo:    campaignRepo,
		dispatchHandler: dispatchHandler,
	}
}

func (h *RunCampaigns) Init(_ context.Context) error {
	return nil
}

func (h *RunCampaigns) Run(ctx context.Context) error {
	var (
		g   = new(errgroup.Group)
		c   = 4
		ch  = make(chan struct{}, c)
		now = uint64(time.Now().Unix())
	)

	campaigns, err := h.campaignRepo.GetDueScheduled(ctx, now)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get due campaigns failed: %v", err)
		return err
	}

	log.Ctx(ctx).Info().Msgf("number of campaigns to be processed: %d", len(campaigns))

	for _, campaign := range campaigns {
		ch <- struct{}{}

		campaign := campaign
		g.Go(func() error {
			// release go routine
			defer func() {
				<-ch
			}()

			// promote under CAS, another runner may have claimed it
			ok, err := h.campaignRepo.UpdateByStatus(ctx, campaign.GetID(), entity.CampaignStatusScheduled, &entity.Campaign{
				Status:    entity.CampaignStatusRunning,
				StartedAt: goutil.Uint64(uint64(time.Now().Unix())),
			})
			if err != nil {
				log.Ctx(ctx).Error().Msgf("[campaign ID %d] promote campaign failed: %v", campaign.GetID(), err)
				return err
			}
			if !ok {
				log.Ctx(ctx).Info().Msgf("[campaign ID %d] already claimed, skipping", campaign.GetID())
				return nil
			}

			return h.dispatchHandler.RunCampaign(ctx, campaign.GetID())
		})
	}

	return g.Wait()
}

func (h *RunCampaigns) CleanUp(_ context.Context) error {
	return nil
}
