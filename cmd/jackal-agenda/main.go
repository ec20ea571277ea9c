// Command jackal-agenda loads the configured calendar sources and prints
// the occurrences and reminders falling inside the coming days. With
// -watch it keeps running and refreshes on the configured cron schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reedts/jackal-core/internal/config"
	"github.com/reedts/jackal-core/internal/ical"
	"github.com/reedts/jackal-core/internal/ics"
	appLog "github.com/reedts/jackal-core/internal/log"
	"github.com/reedts/jackal-core/internal/model"
	"github.com/reedts/jackal-core/internal/tz"
)

type flagConfig struct {
	configPath string
	days       int
	watch      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.days > 0 {
		conf.HorizonDays = flags.days
	}

	zone, err := displayZone(conf.Timezone)
	if err != nil {
		appLog.Error("failed to resolve timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("jackal-agenda starting",
		"timezone", zone.ID(),
		"horizon_days", conf.HorizonDays,
		"source_count", len(conf.Sources),
		"watch", flags.watch,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loader := ics.NewLoader(conf.CacheDir, zone)

	run := func() {
		if err := runOnce(ctx, loader, conf, zone); err != nil {
			appLog.Error("agenda run failed", err)
		}
	}

	run()
	if !flags.watch {
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, run); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, loader *ics.Loader, conf *config.Config, zone tz.Tz) error {
	events, errs := loader.LoadAll(ctx, sources(conf))
	for _, err := range errs {
		appLog.Warn("source skipped", "err", err)
	}

	applyDefaultAlarm(events, conf.DefaultAlarm)

	now := time.Now()
	agenda, err := ics.BuildAgenda(events, ics.AgendaConfig{
		From: now,
		To:   now.AddDate(0, 0, conf.HorizonDays),
		Zone: &zone,
	})
	if err != nil {
		return err
	}

	printAgenda(agenda)
	return nil
}

// applyDefaultAlarm attaches the configured start-relative reminder to
// events that carry none of their own.
func applyDefaultAlarm(events []*model.Event, spec string) {
	if spec == "" {
		return
	}
	dur, err := ical.ParseIcalDuration(spec)
	if err != nil {
		appLog.Warn("invalid default_alarm, ignoring", "default_alarm", spec, "err", err)
		return
	}
	for _, ev := range events {
		if len(ev.Alarms) > 0 {
			continue
		}
		ev.Alarms = append(ev.Alarms, ical.AlarmGenerator{
			Trigger:     ical.TriggerOnStart(dur.AsDuration()),
			Description: ev.Summary,
			EventUID:    ev.UID,
		})
	}
}

func printAgenda(a ics.Agenda) {
	for _, occ := range a.Occurrences {
		if occ.Span.IsAllday() {
			fmt.Printf("%s  (all day)      %s\n", occ.Span.Begin().Format("2006-01-02"), occ.Summary)
			continue
		}
		fmt.Printf("%s - %s  %s\n",
			occ.Span.Begin().Format("2006-01-02 15:04"),
			occ.Span.End().Format("15:04"),
			occ.Summary,
		)
	}
	for _, al := range a.Alarms {
		fmt.Printf("%s  [reminder]     %s\n", al.At.Format("2006-01-02 15:04"), al.Description)
	}
	for _, uid := range a.Truncated {
		fmt.Printf("(output truncated for %s)\n", uid)
	}
}

func displayZone(id string) (tz.Tz, error) {
	if id == "" {
		return tz.LocalZone(), nil
	}
	return tz.IANAZone(id)
}

func sources(conf *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(conf.Sources))
	for _, s := range conf.Sources {
		out = append(out, ics.Source{ID: s.ID, Name: s.Name, Path: s.Path, URL: s.URL})
	}
	return out
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.IntVar(&cfg.days, "days", 0, "Agenda horizon in days (overrides config if set)")
	flag.BoolVar(&cfg.watch, "watch", false, "Keep running and refresh on the configured schedule")

	flag.Parse()

	return cfg
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/jackal/config.yaml"
	}
	return "./config.yaml"
}
