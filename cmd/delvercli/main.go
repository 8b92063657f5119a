// Delver console runs the research engine in-process with a readline
// prompt and colorized event stream, no server required.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/crawl"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
	"github.com/delverhq/delver/pkg/research"
	"github.com/delverhq/delver/pkg/search"
	"github.com/delverhq/delver/pkg/version"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	queryFmt = color.New(color.FgBlue)
	noteFmt  = color.New(color.FgGreen)
	warnFmt  = color.New(color.FgYellow)
	errFmt   = color.New(color.FgRed)
)

type console struct {
	cfg     *config.Config
	engine  *research.Engine
	bus     *events.Bus
	lastRun *models.RunArtifacts
	topic   string
}

func main() {
	configPath := flag.String("config", os.Getenv("DELVER_CONFIG"), "Path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		errFmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	registry := control.NewRegistry(cfg.Retention.TokenTTL, cfg.Retention.SweepInterval)
	searcher := search.NewOrchestrator(
		search.BuildRegistry(cfg.SearchProviders),
		search.NewCache(0),
		cfg.Settings.SearchStrategy,
	)
	engine := research.NewEngine(cfg, bus, llm.NewRouter(cfg),
		searcher, crawl.NewHTTPCrawler(cfg.Settings.CrawlerTimeout()), registry)

	c := &console{cfg: cfg, engine: engine, bus: bus}
	if err := c.loop(); err != nil && err != io.EOF {
		errFmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *console) loop() error {
	rl, err := readline.New(color.CyanString("delver> "))
	if err != nil {
		return err
	}
	defer rl.Close()

	headline.Printf("delver %s: type a topic to research, /save to export the last run, /quit to exit\n", version.Full())

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			if err == readline.ErrInterrupt {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/save":
			c.save()
		case strings.HasPrefix(line, "/"):
			warnFmt.Printf("unknown command %s\n", line)
		default:
			c.research(line)
		}
	}
}

func (c *console) research(topic string) {
	sessionID := fmt.Sprintf("cli-%d", time.Now().UnixNano())
	subID := c.bus.SubscribeAsync(sessionID, func(ev models.Event) error {
		printEvent(ev)
		return nil
	})
	defer c.bus.Unsubscribe(sessionID, subID)

	artifacts := c.engine.Run(context.Background(), &models.RunRequest{
		Topic:     topic,
		SessionID: sessionID,
	})
	c.lastRun = artifacts
	c.topic = topic

	fmt.Println()
	headline.Println("=== final report ===")
	fmt.Println(artifacts.FinalReport)
	if artifacts.BudgetStopReason != "" && artifacts.BudgetStopReason != models.StopReasonNone {
		warnFmt.Printf("run stopped early: %s\n", artifacts.BudgetStopReason)
	}
	if artifacts.SavedPath != "" {
		noteFmt.Printf("run record saved to %s\n", artifacts.SavedPath)
	}
}

func (c *console) save() {
	if c.lastRun == nil {
		warnFmt.Println("nothing to save yet")
		return
	}
	record := &models.RunRecord{
		Topic:       c.topic,
		Queries:     c.lastRun.Queries,
		Summaries:   c.lastRun.Summaries,
		SearchRuns:  c.lastRun.SearchRuns,
		FinalReport: c.lastRun.FinalReport,
		Epoch:       c.lastRun.Epoch,
		Mode:        c.lastRun.Mode,
	}
	path, err := research.SaveRunRecord(c.cfg.Settings.SaveDir, record, time.Now())
	if err != nil {
		errFmt.Println("save failed:", err)
		return
	}
	noteFmt.Println("saved to", path)

	s := c.cfg.Settings
	if s.SaveFormat == config.SaveFormatDocx && s.DocxTemplate != "" {
		docxPath, err := research.ExportReportDocx(s.DocxTemplate, s.SaveDir, c.topic, c.lastRun.FinalReport, time.Now())
		if err != nil {
			errFmt.Println("docx export failed:", err)
			return
		}
		noteFmt.Println("report exported to", docxPath)
	}
}

func printEvent(ev models.Event) {
	switch ev.Type {
	case models.EventResearchNodeStart:
		headline.Printf("▶ exploring %v\n", ev.Data["topic"])
	case models.EventSearch:
		queryFmt.Printf("  search [%v] %v (%v results)\n", ev.Data["provider"], ev.Data["query"], ev.Data["count"])
	case models.EventResearchNodeComplete:
		if summary, _ := ev.Data["summary"].(string); summary != "" {
			noteFmt.Printf("  ✔ %s\n", summary)
		}
	case models.EventQualityUpdate:
		if warning, _ := ev.Data["freshness_warning"].(string); warning != "" {
			warnFmt.Printf("  ! %s\n", warning)
		}
	case models.EventError:
		errFmt.Printf("  error: %v\n", ev.Data)
	case models.EventDone:
		headline.Println("✔ run finished")
	}
}
