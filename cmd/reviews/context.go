package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
	"github.com/joseph-ayodele/reviews-extractor/internal/orchestrator"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *common.Config
	configErr  error
	logger     *slog.Logger
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*common.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := common.LoadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
			cfg.Client.APIURL = strings.TrimSpace(*c.apiFlag)
		}
		c.config = cfg
		c.logger = common.NewLogger(cfg.Logging, os.Stderr)
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *commandContext) apiClient() (*orchestrator.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return orchestrator.NewClient(cfg.Client.APIURL, cfg.Pleper.Timeout.Std()+30*time.Second, c.log()), nil
}

func (c *commandContext) credentialStore() (*credential.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return credential.NewStore(cfg.Storage.CredentialPath, cfg.Pleper.FallbackAPIKey, c.log())
}
