package sync_campaigns

import (
	"campaigner/handler"
	"campaigner/pkg/service"
	"campaigner/repo"
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maxCampaignsPerSweep = 20

// SyncCampaigns reconciles delivery state for campaigns that may still
// receive provider events.
type SyncCampaigns struct {
	campaignRepo    repo.CampaignRepo
	dispatchHandler handler.DispatchHandler
}

func New(campaignRepo repo.CampaignRepo, dispatchHandler handler.DispatchHandler) service.Job {
	return &SyncCampaigns{
		campaignRepo:    campaignRepo,
		dispatchHandler: dispatchHandler,
	}
}

func (h *SyncCampaigns) Init(_ context.Context) error {
	return nil
}

func (h *SyncCampaigns) Run(ctx context.Context) error {
	var (
		g  = new(errgroup.Group)
		c  = 4
		ch = make(chan struct{}, c)
	)

	campaigns, err := h.campaignRepo.GetSyncCandidates(ctx, maxCampaignsPerSweep)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get sync candidates failed: %v", err)
		return err
	}

	log.Ctx(ctx).Info().Msgf("number of campaigns to be synced: %d", len(campaigns))

	for _, campaign := range campaigns {
		ch <- struct{}{}

		campaign := campaign
		g.Go(func() error {
			// release go routine
			defer func() {
				<-ch
			}()

			if err := h.dispatchHandler.SyncCampaign(ctx, campaign.GetID()); err != nil {
				log.Ctx(ctx).Error().Msgf("[campaign ID %d] sync campaign failed: %v", campaign.GetID(), err)
				return err
			}

			return nil
		})
	}

	return g.Wait()
}

func (h *SyncCampaigns) CleanUp(_ context.Context) error {
	return nil
}
