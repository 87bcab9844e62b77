package config

import (
	"campaigner/pkg/mq"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MetadataDB  MySQL       `json:"metadata_db"`
	Resend      Resend      `json:"resend"`
	Dispatch    Dispatch    `json:"dispatch"`
	EventStream EventStream `json:"event_stream"`
	Archive     GoogleDrive `json:"archive"`
}

type MySQL struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
}

func (mysql *MySQL) ToDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", mysql.Username, mysql.Password, mysql.Host, mysql.Port, mysql.Database)
}

// Resend holds the delivery provider credentials. APIKey and From are
// required by any campaign-creating or -dispatching operation and are
// validated there, not at startup.
type Resend struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	From    string `json:"from"`
	ReplyTo string `json:"reply_to"`
}

type Dispatch struct {
	BatchSize    int `json:"batch_size"`
	BatchDelayMs int `json:"batch_delay_ms"`
	SyncMaxPages int `json:"sync_max_pages"`
	SyncPageSize int `json:"sync_page_size"`
}

type EventStream struct {
	Enabled  bool              `json:"enabled"`
	Producer mq.ProducerConfig `json:"producer"`
	Consumer mq.ConsumerConfig `json:"consumer"`
}

type GoogleDrive struct {
	Enabled              bool                   `json:"enabled"`
	BaseFolderID         string                 `json:"base_folder_id"`
	AdminEmail           string                 `json:"admin_email"`
	GoogleServiceAccount map[string]interface{} `json:"google_service_account"`
}

func NewConfig() *Config {
	return &Config{
		MetadataDB: MySQL{
			Username: "",
			Password: "",
			Host:     "127.0.0.1",
			Port:     3306,
			Database: "campaigner_db",
		},
		Resend: Resend{
			APIKey:  "",
			BaseURL: "https://api.resend.com",
			From:    "",
			ReplyTo: "",
		},
		Dispatch: Dispatch{
			BatchSize:    100,
			BatchDelayMs: 1100,
			SyncMaxPages: 30,
			SyncPageSize: 100,
		},
		EventStream: EventStream{
			Enabled: false,
			Producer: mq.ProducerConfig{
				Brokers: []string{"127.0.0.1:9092"},
				Topics: map[uint32]string{
					uint32(mq.PayloadCampaignEvent): "campaign_events",
				},
			},
			Consumer: mq.ConsumerConfig{
				Brokers:       []string{"127.0.0.1:9092"},
				Topic:         "campaign_events",
				ConsumerGroup: "campaigner",
				InitialOffset: "oldest",
			},
		},
		Archive: GoogleDrive{
			Enabled: false,
		},
	}
}

func (c *Config) Load(ctx context.Context, path string) error {
	if path == "" {
		log.Ctx(ctx).Warn().Msgf("empty config file")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if err := json.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	return nil
}
