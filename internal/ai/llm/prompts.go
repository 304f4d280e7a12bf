package llm

import (
	"fmt"
	"strings"

	"mvpforex/internal/analysis"
)

// systemPrompt frames every strategy request.
const systemPrompt = `You are an expert trading analyst specializing in Fibonacci trading strategies for gold (XAUUSD). You provide precise, detailed analysis with exact price levels and clear reasoning. Focus on concrete, actionable advice based on the Fibonacci OTE strategy, and ensure all calculations are accurate. Format your response with clear headings and sections to make it easy to read and implement.`

// BuildStrategyPrompt renders the market snapshot into the analyst prompt.
// The fibonacci zone section is omitted when no valid setup exists.
func BuildStrategyPrompt(result *analysis.Result) string {
	var b strings.Builder

	b.WriteString("As a professional trading analyst, analyze the following XAUUSD (Gold) market data ")
	b.WriteString("and provide a detailed explanation of the current setup according to the Fibonacci OTE strategy:\n\n")

	b.WriteString("Current Market Information:\n")
	fmt.Fprintf(&b, "- Timeframe: %s\n", granularityLabel(result.Granularity))
	fmt.Fprintf(&b, "- Current Price: $%.2f\n", result.Trend.CurrentPrice)
	fmt.Fprintf(&b, "- Identified Trend: %s (%s)\n", result.Trend.Direction, result.Trend.Strength)
	fmt.Fprintf(&b, "- 20-period SMA: $%.2f\n", result.Trend.SMAShort)
	fmt.Fprintf(&b, "- 50-period SMA: $%.2f\n", result.Trend.SMALong)

	b.WriteString("\nRecent Structure Points:\n")
	fmt.Fprintf(&b, "- Swing Highs: %s\n", formatPoints(result.Structure.SwingHighs))
	fmt.Fprintf(&b, "- Swing Lows: %s\n", formatPoints(result.Structure.SwingLows))

	if result.Fibonacci != nil {
		zone := result.Fibonacci
		b.WriteString("\nPre-calculated Fibonacci Levels:\n")
		fmt.Fprintf(&b, "- Entry Price (0.705 Fib): $%.2f\n", zone.EntryPrice)
		fmt.Fprintf(&b, "- OTE Zone: $%.2f to $%.2f\n", zone.OTEStart, zone.OTEEnd)
		fmt.Fprintf(&b, "- Stop Loss: $%.2f\n", zone.StopLoss)
		fmt.Fprintf(&b, "- Take Profit 1 (1:1 RR): $%.2f\n", zone.TakeProfit1)
		fmt.Fprintf(&b, "- Take Profit 2 (Swing): $%.2f\n", zone.TakeProfit2)
	}

	b.WriteString(`
Strategy Rules:
For Bullish Trend:
- Use Fibonacci from the last significant low to the last high
- Enter buy limit at 0.705 Fibonacci level (OTE zone)
- Place stop loss 3 pips below the last significant low
- TP1 at 1:1 risk-reward ratio, TP2 at the impulse extreme

For Bearish Trend:
- Use Fibonacci from the last significant high to the last low
- Enter sell limit at 0.705 Fibonacci level (OTE zone)
- Place stop loss 3 pips above the last significant high
- TP1 at 1:1 risk-reward ratio, TP2 at the impulse extreme

Please provide:
1. A detailed assessment of the current trend, including confirmation of BOS or CHoCH
2. Identification of which swing points should be used for Fibonacci placement
3. Calculation of the OTE zone (61.8% to 78.6% Fibonacci levels)
4. Exact entry price recommendation at the 0.705 Fibonacci level
5. Precise stop loss and take profit levels with pip distances
6. Any potential warnings or special considerations for this setup
7. A confidence rating (1-10) for this trading opportunity

Support your analysis with specific price levels and clear reasoning.
`)

	return b.String()
}

// formatPoints renders swing points as "$price at time" entries.
func formatPoints(points []analysis.StructurePoint) string {
	if len(points) == 0 {
		return "none identified"
	}

	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("$%.2f at %s", p.Price, p.Time.Format("2006-01-02 15:04:05"))
	}
	return strings.Join(parts, ", ")
}

// granularityLabel expands OANDA granularity codes for the prompt.
func granularityLabel(granularity string) string {
	switch granularity {
	case "M5":
		return "M5 (5-minute candles)"
	case "M15":
		return "M15 (15-minute candles)"
	case "M30":
		return "M30 (30-minute candles)"
	case "H1":
		return "H1 (1-hour candles)"
	case "H4":
		return "H4 (4-hour candles)"
	case "D":
		return "D (daily candles)"
	default:
		return granularity
	}
}
