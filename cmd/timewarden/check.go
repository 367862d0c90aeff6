package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/timewarden/internal/config"
	"github.com/goodtune/timewarden/internal/hostname"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

var (
	checkDay  string
	checkTime string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check tracking decisions interactively",
	Long:  `Check how TimeWarden would treat a URL or what the current period looks like for a hostname.`,
}

var checkMatchCmd = &cobra.Command{
	Use:   "match URL",
	Short: "Check which configured hostname a URL maps to",
	Long:  `Check whether a URL would be tracked, and against which configured hostname its time would accrue.`,
	Example: `  timewarden -c config.yaml check match https://www.example.com/watch
  timewarden check match https://news.ycombinator.com/item?id=1`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckMatch,
}

var checkPeriodCmd = &cobra.Command{
	Use:   "period HOSTNAME",
	Short: "Check the tracking period and budget for a hostname",
	Long:  `Check the period date, effective limit, usage and next reset for a configured hostname.`,
	Example: `  timewarden -c config.yaml check period example.com
  timewarden check period example.com --day saturday --time 23:30`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckPeriod,
}

func init() {
	checkPeriodCmd.Flags().StringVar(&checkDay, "day", "", "Day of week (monday, tuesday, etc.) - defaults to current day")
	checkPeriodCmd.Flags().StringVar(&checkTime, "time", "", "Time of day (HH:MM) - defaults to current time")

	checkCmd.AddCommand(checkMatchCmd)
	checkCmd.AddCommand(checkPeriodCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckMatch(cmd *cobra.Command, args []string) error {
	rawURL := args[0]

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	configs, err := st.State().GetConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load hostname configs: %w", err)
	}
	settings, err := st.State().GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	var enabled []string
	for _, c := range configs {
		if c.Enabled {
			enabled = append(enabled, c.Hostname)
		}
	}

	matcher, err := hostname.NewMatcher(enabled, cfg.Tracking.HostnameCacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize hostname matcher: %w", err)
	}

	matched, ok := matcher.MatchURL(rawURL)

	var matchedCfg *storage.HostnameConfig
	if ok {
		for i := range configs {
			if configs[i].Hostname == matched {
				matchedCfg = &configs[i]
				break
			}
		}
	}

	printMatchResult(rawURL, matched, matchedCfg, settings)
	return nil
}

func runCheckPeriod(cmd *cobra.Command, args []string) error {
	host := args[0]

	at, err := parseCheckTime(checkDay, checkTime)
	if err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	configs, err := st.State().GetConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load hostname configs: %w", err)
	}
	settings, err := st.State().GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	var hostCfg *storage.HostnameConfig
	for i := range configs {
		if configs[i].Hostname == host {
			hostCfg = &configs[i]
			break
		}
	}
	if hostCfg == nil {
		return fmt.Errorf("hostname not configured: %s", host)
	}

	usageLog, err := st.State().GetUsageLog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load usage log: %w", err)
	}

	date := period.Date(*hostCfg, settings, at)
	var usage *storage.HostnameUsage
	if day := usageLog.Day(date); day != nil {
		usage = day.Usage(host)
	}

	printPeriodResult(*hostCfg, settings, at, date, usage)
	return nil
}

// printMatchResult prints the match check result with colors
func printMatchResult(rawURL, matched string, cfg *storage.HostnameConfig, settings storage.GlobalSettings) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("HOSTNAME MATCH CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("URL:        %s\n", rawURL)
	if matched != "" {
		fmt.Printf("Matched:    %s\n", matched)
	} else {
		fmt.Printf("Matched:    (no configured hostname)\n")
	}
	fmt.Println()

	cyan.Print("Decision:   ")
	if cfg != nil {
		green.Println("TRACKED")
		eff := period.Resolve(*cfg, settings, time.Now().Weekday())
		fmt.Println("            → Attention on this tab accrues time")
		fmt.Printf("            → Daily limit today: %s\n", formatSeconds(int64(eff.LimitSeconds)))
		fmt.Printf("            → Period resets at: %s\n", eff.ResetTime)
	} else {
		yellow.Println("UNTRACKED")
		fmt.Println("            → No enabled configuration matches this URL")
		fmt.Println("            → Time on this site is not accounted")
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// printPeriodResult prints the period check result with colors
func printPeriodResult(cfg storage.HostnameConfig, settings storage.GlobalSettings, at time.Time, date string, usage *storage.HostnameUsage) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	eff := period.Resolve(cfg, settings, at.Weekday())
	next := period.NextReset(cfg, settings, at)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("TRACKING PERIOD CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Hostname:    %s\n", cfg.Hostname)
	fmt.Printf("Check Time:  %s (%s)\n", at.Format("2006-01-02 15:04"), at.Weekday())
	fmt.Printf("Period Date: %s\n", date)
	fmt.Printf("Limit:       %s\n", formatSeconds(int64(eff.LimitSeconds)))
	fmt.Printf("Reset Time:  %s\n", eff.ResetTime)
	fmt.Printf("Next Reset:  %s\n", next.Format("2006-01-02 15:04"))

	var spent int64
	blocked := false
	if usage != nil {
		spent = usage.TimeSpentSeconds
		blocked = usage.Blocked
		fmt.Printf("Time Spent:  %s (%d visits)\n", formatSeconds(spent), usage.VisitCount)
		if usage.PausedSeconds > 0 {
			fmt.Printf("Paused:      %s\n", formatSeconds(usage.PausedSeconds))
		}
	} else {
		fmt.Printf("Time Spent:  none recorded\n")
	}
	fmt.Println()

	cyan.Print("State:       ")
	switch {
	case blocked:
		red.Println("BLOCKED")
		fmt.Println("             → Navigations redirect to the blocked page")
		fmt.Println("             → Unblocks at the next reset")
	case int(spent) >= eff.LimitSeconds:
		yellow.Println("EXHAUSTED")
		fmt.Println("             → Budget is spent; next attention triggers the block")
	default:
		green.Println("WITHIN LIMIT")
		fmt.Printf("             → %s remaining today\n", formatSeconds(int64(eff.LimitSeconds)-spent))
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// formatSeconds renders a second count as h/m/s for humans.
func formatSeconds(s int64) string {
	if s < 0 {
		s = 0
	}
	d := time.Duration(s) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

// parseCheckTime parses day and time flags into a time.Time
func parseCheckTime(dayStr, timeStr string) (time.Time, error) {
	now := time.Now()

	// Parse time (HH:MM)
	hour := now.Hour()
	minute := now.Minute()

	if timeStr != "" {
		parts := strings.Split(timeStr, ":")
		if len(parts) != 2 {
			return time.Time{}, fmt.Errorf("time must be in HH:MM format")
		}

		var err error
		_, err = fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
		}

		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid time: hour must be 0-23, minute must be 0-59")
		}
	}

	// Parse day of week
	targetDay := now.Weekday()
	if dayStr != "" {
		dayStr = strings.ToLower(dayStr)
		switch dayStr {
		case "sunday", "sun":
			targetDay = time.Sunday
		case "monday", "mon":
			targetDay = time.Monday
		case "tuesday", "tue":
			targetDay = time.Tuesday
		case "wednesday", "wed":
			targetDay = time.Wednesday
		case "thursday", "thu":
			targetDay = time.Thursday
		case "friday", "fri":
			targetDay = time.Friday
		case "saturday", "sat":
			targetDay = time.Saturday
		default:
			return time.Time{}, fmt.Errorf("invalid day: %s", dayStr)
		}
	}

	// Calculate target date
	daysUntilTarget := int(targetDay - now.Weekday())
	if daysUntilTarget < 0 {
		daysUntilTarget += 7
	}

	targetDate := now.AddDate(0, 0, daysUntilTarget)
	result := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), hour, minute, 0, 0, now.Location())

	return result, nil
}
