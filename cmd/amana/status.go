package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/amanabot/amana/config"
	"github.com/amanabot/amana/internal/domain"
	"github.com/amanabot/amana/internal/storage/decisions"
	"github.com/amanabot/amana/internal/storage/pnl"
	"github.com/amanabot/amana/internal/storage/trades"
)

const statusRows = 10

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func equityStoreDir(cfg config.Config, store string) string {
	return filepath.Join(cfg.StorageDir, "equity", store)
}

func cryptoStoreDir(cfg config.Config, store string) string {
	return filepath.Join(cfg.StorageDir, "crypto", store)
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recent trades and daily P&L from the audit ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			if cfg.Equity.Enabled {
				out, err := renderDomainStatus(cfg, "equity", equityStoreDir)
				if err != nil {
					return err
				}
				fmt.Println(out)
			}
			if cfg.Crypto.Enabled {
				out, err := renderDomainStatus(cfg, "crypto", cryptoStoreDir)
				if err != nil {
					return err
				}
				fmt.Println(out)
			}
			return nil
		},
	}
}

func renderDomainStatus(cfg config.Config, tradingDomain string, storeDir func(config.Config, string) string) (string, error) {
	tradeStore, err := trades.NewWALStore(storeDir(cfg, "trades"))
	if err != nil {
		return "", errors.Wrapf(err, "open %s trade store", tradingDomain)
	}
	defer tradeStore.Close()

	pnlStore, err := pnl.NewWALStore(storeDir(cfg, "pnl"))
	if err != nil {
		return "", errors.Wrapf(err, "open %s pnl store", tradingDomain)
	}
	defer pnlStore.Close()

	decisionStore, err := decisions.NewWALStore(storeDir(cfg, "decisions"))
	if err != nil {
		return "", errors.Wrapf(err, "open %s decision store", tradingDomain)
	}
	defer decisionStore.Close()

	recent, err := tradeStore.Recent(statusRows)
	if err != nil {
		return "", errors.Wrapf(err, "read %s trades", tradingDomain)
	}
	history := pnlStore.History(tradingDomain, statusRows)
	audit, err := decisionStore.Recent(statusRows)
	if err != nil {
		return "", errors.Wrapf(err, "read %s decisions", tradingDomain)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(strings.ToUpper(tradingDomain) + " STATUS"))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(renderPnLTable(history)))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(renderTradeTable(recent)))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(renderDecisionTable(audit)))
	return b.String(), nil
}

func renderPnLTable(history []domain.PnLSnapshot) string {
	if len(history) == 0 {
		return dimStyle.Render("no P&L history yet")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-12s %12s %12s %10s %7s\n", "DATE", "START", "END", "P&L", "TRADES"))
	for _, snap := range history {
		line := fmt.Sprintf("%-12s %12s %12s %10s %7d",
			snap.Date,
			snap.StartingEquity.StringFixed(2),
			snap.EndingEquity.StringFixed(2),
			snap.PnL.StringFixed(2),
			snap.TradesCount)
		if snap.PnL.IsNegative() {
			line = lossStyle.Render(line)
		} else if snap.PnL.IsPositive() {
			line = gainStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTradeTable(records []domain.TradeRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("no trades recorded yet")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-20s %-8s %-5s %12s %12s %-10s\n",
		"TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "STATUS"))
	for _, rec := range records {
		line := fmt.Sprintf("%-20s %-8s %-5s %12s %12s %-10s",
			rec.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			rec.Symbol,
			rec.Side,
			rec.Quantity.String(),
			rec.Price.StringFixed(2),
			rec.Status)
		switch rec.Status {
		case domain.ExecutionSubmitted:
			line = gainStyle.Render(line)
		case domain.ExecutionError:
			line = lossStyle.Render(line)
		default:
			line = dimStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDecisionTable(records []domain.DecisionRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("no model decisions recorded yet")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-20s %-22s %5s %5s %5s %8s  %s\n",
		"TIME", "MODEL", "BUYS", "SELLS", "HOLDS", "MS", "NOTE"))
	for _, rec := range records {
		note := ""
		if rec.Error != "" {
			note = rec.Error
		}
		line := fmt.Sprintf("%-20s %-22s %5d %5d %5d %8d  %s",
			rec.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			rec.Model,
			rec.Buys,
			rec.Sells,
			rec.Holds,
			rec.ElapsedMs,
			note)
		if rec.Error != "" {
			line = lossStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSymbolList(title string, symbols []string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if len(symbols) == 0 {
		b.WriteString(sectionStyle.Render(dimStyle.Render("none")))
		return b.String()
	}
	b.WriteString(sectionStyle.Render(strings.Join(symbols, "  ")))
	return b.String()
}
