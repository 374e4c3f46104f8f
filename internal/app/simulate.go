package app

import (
	"context"
	"errors"
	"fmt"

	"propwatch/internal/alerting"
	"propwatch/internal/propagation"
)

// SimulateOptions describe a synthetic status transition.
type SimulateOptions struct {
	Category string
	From     string
	To       string
	Score    int
}

// SimulateAlert 通过给定的状态切换模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	var cc propagation.CategoryConfig
	switch propagation.Category(opts.Category) {
	case propagation.CategoryNVIS:
		cc = a.engine.NVIS
	case propagation.CategoryMainland:
		cc = a.engine.MainlandPath
	default:
		return fmt.Errorf("未知类别 %q", opts.Category)
	}
	if !validLabel(cc, opts.From) || !validLabel(cc, opts.To) {
		return fmt.Errorf("状态必须为 %s/%s/%s/%s 之一", cc.Labels.Best, cc.Labels.Mid, cc.Labels.Worst, propagation.StatusUnknown)
	}

	note := alerting.Notification{
		Timestamp:     a.Clock.Now().UTC(),
		Category:      string(cc.Category),
		Previous:      opts.From,
		Current:       opts.To,
		Score:         opts.Score,
		Confidence:    propagation.ConfidenceMedium,
		VaraClass:     propagation.VaraClass(float64(opts.Score), cc),
		VaraScore:     opts.Score,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "(simulated)",
	}
	return notifier.Notify(ctx, note)
}

func validLabel(cc propagation.CategoryConfig, label string) bool {
	switch label {
	case cc.Labels.Best, cc.Labels.Mid, cc.Labels.Worst, propagation.StatusUnknown:
		return true
	}
	return false
}
