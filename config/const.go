package config

const (
	PathHealthCheck              = "/"
	PathEstimateRecipients       = "/estimate_recipients"
	PathCreateCampaign           = "/create_campaign"
	PathConfirmCampaign          = "/confirm_campaign"
	PathGetCampaigns             = "/get_campaigns"
	PathGetCampaign              = "/get_campaign"
	PathGetCampaignRecipients    = "/get_campaign_recipients"
	PathSyncCampaign             = "/sync_campaign"
	PathExportCampaignRecipients = "/export_campaign_recipients"
)

const (
	DefaultPort   = 9090
	LogLevelDebug = "DEBUG"
)
