package alert

import (
	"github.com/autogenerations/printsync/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("alert",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Notifier {
	if cfg.Email.SMTPUsername == "" || len(cfg.Email.Recipients) == 0 {
		return NoOpNotifier{}
	}
	return NewSMTP(Config{
		Host:       cfg.Email.SMTPHost,
		Port:       cfg.Email.SMTPPort,
		Username:   cfg.Email.SMTPUsername,
		Password:   cfg.Email.SMTPPassword,
		From:       cfg.Email.SMTPFrom,
		Recipients: cfg.Email.Recipients,
	})
}
