package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/consts"
	"github.com/tgifai/teleworker/internal/pkg/utils"
)

var onboardHwd = &OnboardRunner{}

type OnboardRunner struct {
	scanner *bufio.Scanner
	yes     bool
}

func (r *OnboardRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "onboard",
		Usage: "Interactive setup wizard for first-time configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Accept every default without prompting",
			},
		},
		Action: r.run,
	}
}

// ── style helpers ──────────────────────────────────────────────────

var (
	cBanner  = color.New(color.FgCyan, color.Bold)
	cStep    = color.New(color.FgCyan, color.Bold)
	cWarn    = color.New(color.FgYellow)
	cSuccess = color.New(color.FgGreen)
	cError   = color.New(color.FgRed)
	cPrompt  = color.New(color.FgWhite, color.Bold)
	cDim     = color.New(color.FgHiBlack)
)

// ── channel metadata ───────────────────────────────────────────────

type channelPrompt struct {
	Key     string
	Label   string
	Default string
}

type channelMeta struct {
	Type    string
	Prompts []channelPrompt
}

var textChannelOptions = []channelMeta{
	{
		Type: "telegram",
		Prompts: []channelPrompt{
			{Key: "token", Label: "Telegram Bot Token", Default: "${TELEGRAM_BOT_TOKEN}"},
		},
	},
	{
		Type: "lark",
		Prompts: []channelPrompt{
			{Key: "app_id", Label: "Lark App ID", Default: "${LARK_APP_ID}"},
			{Key: "app_secret", Label: "Lark App Secret", Default: "${LARK_APP_SECRET}"},
		},
	},
}

var voiceChannelOptions = []channelMeta{
	{Type: "none"},
	{
		Type: "callmebot",
		Prompts: []channelPrompt{
			{Key: "user", Label: "CallMeBot user (@telegram handle or phone)", Default: "${CALLMEBOT_USER}"},
			{Key: "lang", Label: "Voice language", Default: "en-US-Standard-B"},
		},
	},
	{
		Type: "twilio",
		Prompts: []channelPrompt{
			{Key: "account_sid", Label: "Twilio Account SID", Default: "${TWILIO_ACCOUNT_SID}"},
			{Key: "auth_token", Label: "Twilio Auth Token", Default: "${TWILIO_AUTH_TOKEN}"},
			{Key: "from", Label: "Calling number", Default: "${TWILIO_FROM}"},
			{Key: "to", Label: "Number to ring", Default: "${TWILIO_TO}"},
		},
	},
}

var storeOptions = []string{config.StoreJSON, config.StoreSQLite, config.StorePostgres}

// ── main flow ──────────────────────────────────────────────────────

func (r *OnboardRunner) run(_ context.Context, cmd *cli.Command) error {
	r.scanner = bufio.NewScanner(os.Stdin)
	r.yes = cmd.Bool("yes")

	cfgPath := configPath(cmd)
	if _, err := os.Stat(cfgPath); err == nil {
		cWarn.Printf("  Config already exists at %s\n", cfgPath)
		if !r.confirm("  Overwrite existing config?", false) {
			fmt.Println("  Aborted.")
			return nil
		}
		fmt.Println()
	}

	r.stepWelcome()

	textID, textCfg := r.stepChannel("Step 1", "Text Channel", textChannelOptions)
	voiceID, voiceCfg := r.stepChannel("Step 2", "Voice Channel", voiceChannelOptions)
	sched := r.stepScheduler()
	store := r.stepStore()

	channels := map[string]config.ChannelConfig{textID: textCfg}
	notify := config.NotifyConfig{DefaultChannel: textID}
	if voiceID != "" {
		channels[voiceID] = voiceCfg
		notify.VoiceChannel = voiceID
	}

	cfg := &config.Config{
		Gateway: config.GatewayConfig{
			Bind:           "0.0.0.0:8787",
			RequestTimeout: 30,
			AdminPassword:  utils.RandStr(24),
		},
		Logging: config.LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			File:       filepath.Join(consts.TeleworkerHomeDir(), "logs", "teleworker.log"),
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     7,
			Compress:   true,
		},
		Scheduler: sched,
		Store:     store,
		Channels:  channels,
		Notify:    notify,
	}

	return r.stepConfirm(cfgPath, cfg)
}

// ── welcome ────────────────────────────────────────────────────────

func (r *OnboardRunner) stepWelcome() {
	fmt.Println()
	cBanner.Println("  ┌┬┐┌─┐┬  ┌─┐┬ ┬┌─┐┬─┐┬┌─┌─┐┬─┐")
	cBanner.Println("   │ ├┤ │  ├┤ ││││ │├┬┘├┴┐├┤ ├┬┘")
	cBanner.Println("   ┴ └─┘┴─┘└─┘└┴┘└─┘┴└─┴ ┴└─┘┴└─")
	cDim.Println("  Reminders over chat and voice")
	fmt.Println()
	cDim.Println("  Secrets can be typed in or left as ${ENV_VAR} placeholders,")
	cDim.Printf("  which are expanded from the environment or %s at load time.\n", consts.EnvFileName)
	fmt.Println()
}

// ── channels ───────────────────────────────────────────────────────

func (r *OnboardRunner) stepChannel(step, title string, options []channelMeta) (string, config.ChannelConfig) {
	r.printStepHeader(step, title)

	cDim.Println("  Select channel type:")
	for i, ch := range options {
		fmt.Printf("    [%d] %s\n", i+1, ch.Type)
	}
	fmt.Println()

	idx := r.promptChoice("  Channel type", 1, len(options))
	cm := options[idx-1]
	fmt.Println()
	if cm.Type == "none" {
		cSuccess.Printf("  ✓ %s: none\n\n", title)
		return "", config.ChannelConfig{}
	}

	channelID := r.promptDefault("  Channel id", cm.Type)
	fmt.Println()

	chConfig := make(map[string]interface{})
	for _, p := range cm.Prompts {
		chConfig[p.Key] = r.promptDefault("  "+p.Label, p.Default)
		fmt.Println()
	}

	cSuccess.Printf("  ✓ %s: %s (%s)\n\n", title, channelID, cm.Type)
	return channelID, config.ChannelConfig{Type: cm.Type, Enabled: true, Config: chConfig}
}

// ── scheduler ──────────────────────────────────────────────────────

func (r *OnboardRunner) stepScheduler() config.SchedulerConfig {
	r.printStepHeader("Step 3", "Clock")

	cDim.Println("  Cron fields are read in the cron zone, interval dates and")
	cDim.Println("  alarms in your local zone. Use UTC or a fixed offset like +07:00.")
	fmt.Println()

	var sc config.SchedulerConfig
	for {
		sc.CronTimezone = r.promptDefault("  Cron zone", "UTC")
		if _, err := config.ParseZone(sc.CronTimezone); err == nil {
			break
		}
		cError.Println("  Not a valid zone.")
	}
	for {
		sc.LocalTimezone = r.promptDefault("  Local zone", "+07:00")
		if _, err := config.ParseZone(sc.LocalTimezone); err == nil {
			break
		}
		cError.Println("  Not a valid zone.")
	}
	for {
		sc.DefaultTime = r.promptDefault("  Default time for date-only intervals", "08:00")
		if _, _, err := config.ParseClock(sc.DefaultTime); err == nil {
			break
		}
		cError.Println("  Use HH:MM.")
	}
	fmt.Println()

	cSuccess.Printf("  ✓ Clock: cron %s, local %s\n\n", sc.CronTimezone, sc.LocalTimezone)
	return sc
}

// ── store ──────────────────────────────────────────────────────────

func (r *OnboardRunner) stepStore() config.StoreConfig {
	r.printStepHeader("Step 4", "Storage")

	cDim.Println("  Select reminder store:")
	for i, s := range storeOptions {
		fmt.Printf("    [%d] %s\n", i+1, s)
	}
	fmt.Println()

	driver := storeOptions[r.promptChoice("  Store", 1, len(storeOptions))-1]
	sc := config.StoreConfig{Driver: driver}
	fmt.Println()

	switch driver {
	case config.StorePostgres:
		sc.DSN = r.promptDefault("  Postgres DSN", "${TELEWORKER_POSTGRES_DSN}")
	default:
		sc.Path = r.promptDefault("  File path", consts.DefaultStorePath(driver))
	}
	fmt.Println()

	cSuccess.Printf("  ✓ Store: %s\n\n", driver)
	return sc
}

// ── confirm & write ────────────────────────────────────────────────

func (r *OnboardRunner) stepConfirm(cfgPath string, cfg *config.Config) error {
	r.printStepHeader("Step 5", "Review")

	cDim.Printf("  Config file:     %s\n", cfgPath)
	cDim.Printf("  Text channel:    %s\n", cfg.Notify.DefaultChannel)
	if cfg.Notify.VoiceChannel != "" {
		cDim.Printf("  Voice channel:   %s\n", cfg.Notify.VoiceChannel)
	}
	cDim.Printf("  Store:           %s\n", cfg.Store.Driver)
	cDim.Printf("  Gateway:         %s\n", cfg.Gateway.Bind)
	fmt.Println()

	if !r.confirm("  Write config?", true) {
		fmt.Println("  Aborted.")
		return nil
	}
	fmt.Println()

	if err := config.Write(cfgPath, cfg); err != nil {
		cError.Printf("  ✗ Failed to write config: %v\n", err)
		return err
	}
	cSuccess.Printf("  ✓ Created %s\n", cfgPath)
	cWarn.Printf("  Admin password for the HTTP API: %s\n", cfg.Gateway.AdminPassword)

	fmt.Println()
	cSuccess.Printf("  All set! Run \"%s gateway run\" to start.\n", consts.AppName)
	fmt.Println()
	return nil
}

// ── input helpers ──────────────────────────────────────────────────

func (r *OnboardRunner) promptDefault(label string, defaultVal string) string {
	if defaultVal != "" {
		cPrompt.Printf("%s ", label)
		cDim.Printf("[%s]", defaultVal)
		cPrompt.Print(" > ")
	} else {
		cPrompt.Printf("%s > ", label)
	}
	if r.yes {
		fmt.Println()
		return defaultVal
	}

	if r.scanner.Scan() {
		val := strings.TrimSpace(r.scanner.Text())
		if val != "" {
			return val
		}
	}
	return defaultVal
}

func (r *OnboardRunner) promptChoice(label string, min, max int) int {
	for {
		val := r.promptDefault(label, strconv.Itoa(min))
		n, err := strconv.Atoi(val)
		if err == nil && n >= min && n <= max {
			return n
		}
		cError.Printf("  Please enter a number between %d and %d.\n", min, max)
	}
}

func (r *OnboardRunner) confirm(label string, defaultYes bool) bool {
	if r.yes {
		return defaultYes
	}

	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	cPrompt.Printf("%s %s > ", label, hint)
	if r.scanner.Scan() {
		val := strings.ToLower(strings.TrimSpace(r.scanner.Text()))
		if val == "" {
			return defaultYes
		}
		return val == "y" || val == "yes"
	}
	return defaultYes
}

func (r *OnboardRunner) printStepHeader(step string, title string) {
	cStep.Printf("═══ %s: %s ═══\n\n", step, title)
}
