package service

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/models"
	"github.com/valyala/fasttemplate"
)

//go:embed templates/system_instructions.txt
var systemInstructionsTemplate string

// PromptService 提示词生成服务
type PromptService struct {
	conf *config.Config
}

func NewPromptService(conf *config.Config) *PromptService {
	return &PromptService{conf: conf}
}

// SystemInstructions 渲染系统指令，账户自定义指令原样拼在末尾
func (s *PromptService) SystemInstructions(account *models.Account) string {
	tmpl := fasttemplate.New(systemInstructionsTemplate, "{{", "}}")
	return tmpl.ExecuteString(map[string]interface{}{
		"commission_rate":     fmt.Sprintf("%.4f", s.conf.Trading.CommissionRate),
		"symbols":             strings.Join(account.Symbols, ", "),
		"custom_instructions": account.CustomInstructions,
	})
}

// BuildPrompt 基于上下文快照生成用户提示词
func (s *PromptService) BuildPrompt(mc *MarketContext) string {
	var sb strings.Builder

	sb.WriteString("## 周期背景\n\n")
	sb.WriteString(fmt.Sprintf("- 本次决策周期序号：%d\n", mc.Cycle))
	sb.WriteString(fmt.Sprintf("- 当前时间：%s\n\n", mc.GeneratedAt.Format("2006-01-02 15:04:05")))

	s.writeMarketOverview(&sb, mc)
	s.writeAccountInfo(&sb, mc)
	s.writePositionInfo(&sb, mc)
	s.writeRecentDecisions(&sb, mc)
	s.writeNews(&sb, mc)

	sb.WriteString("请根据以上信息给出本周期的决策，严格按照要求的JSON格式输出。\n")

	return sb.String()
}

// writeMarketOverview 写入市场数据
func (s *PromptService) writeMarketOverview(sb *strings.Builder, mc *MarketContext) {
	sb.WriteString("## 市场行情\n\n")

	if len(mc.Symbols) == 0 {
		sb.WriteString("暂无可用的市场数据。\n\n")
		return
	}

	for _, sc := range mc.Symbols {
		sb.WriteString(fmt.Sprintf("### %s\n\n", sc.Symbol))
		sb.WriteString(fmt.Sprintf("- 最新价格：$%s（观测时间 %s）\n", sc.Price.String(), sc.ObservedAt.Format("15:04:05")))

		if ind := sc.Indicators; ind != nil {
			sb.WriteString(fmt.Sprintf("- RSI14=%.1f, SMA20=$%.2f, SMA50=$%.2f\n", ind.RSI14, ind.SMA20, ind.SMA50))
			sb.WriteString(fmt.Sprintf("- MACD=%.4f, Signal=%.4f, Hist=%.4f\n", ind.MACD, ind.MACDSignal, ind.MACDHist))
			sb.WriteString(fmt.Sprintf("- 布林带：上轨=$%.2f, 中轨=$%.2f, 下轨=$%.2f\n", ind.BollingerUpper, ind.BollingerMid, ind.BollingerLower))
			sb.WriteString(fmt.Sprintf("- 支撑位=$%.2f, 阻力位=$%.2f, 动量=%.4f\n", ind.Support, ind.Resistance, ind.Momentum10))
		}
		sb.WriteString("\n")
	}

	if len(mc.MissingSymbols) > 0 {
		sb.WriteString(fmt.Sprintf("以下交易对暂无新鲜价格，本周期不要交易它们：%s\n\n", strings.Join(mc.MissingSymbols, ", ")))
	}
}

// writeAccountInfo 写入账户信息
func (s *PromptService) writeAccountInfo(sb *strings.Builder, mc *MarketContext) {
	sb.WriteString("## 账户状态\n\n")
	sb.WriteString(fmt.Sprintf("- 现金余额：$%s\n", mc.Cash.String()))
	sb.WriteString(fmt.Sprintf("- 初始资金：$%s\n\n", mc.InitialCapital.String()))
}

// writePositionInfo 写入持仓信息
func (s *PromptService) writePositionInfo(sb *strings.Builder, mc *MarketContext) {
	sb.WriteString("## 当前持仓\n\n")

	if len(mc.Positions) == 0 {
		sb.WriteString("当前没有持仓。\n\n")
		return
	}

	for _, pc := range mc.Positions {
		if pc.PriceMissing {
			sb.WriteString(fmt.Sprintf("- %s：数量 %s，成本 $%s（当前价格不可用）\n",
				pc.Symbol, pc.Quantity.String(), pc.AvgCost.String()))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s：数量 %s，成本 $%s，市值 $%s，浮动盈亏 $%s\n",
			pc.Symbol, pc.Quantity.String(), pc.AvgCost.String(),
			pc.MarketValue.StringFixed(2), pc.UnrealizedPnl.StringFixed(2)))
	}
	sb.WriteString("\n")
}

// writeRecentDecisions 写入历史决策
func (s *PromptService) writeRecentDecisions(sb *strings.Builder, mc *MarketContext) {
	if len(mc.RecentDecisions) == 0 {
		return
	}

	sb.WriteString("## 最近决策\n\n")
	for _, dc := range mc.RecentDecisions {
		line := fmt.Sprintf("- 周期%d [%s] %s", dc.Cycle, dc.State, dc.Action)
		if dc.Symbol != "" {
			line += fmt.Sprintf(" %s x%s", dc.Symbol, dc.Quantity)
		}
		if dc.Reasoning != "" {
			line += fmt.Sprintf("：%s", truncateString(dc.Reasoning, 100))
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
}

// writeNews 写入市场新闻
func (s *PromptService) writeNews(sb *strings.Builder, mc *MarketContext) {
	if len(mc.News) == 0 {
		return
	}

	sb.WriteString("## 市场新闻\n\n")
	for _, item := range mc.News {
		line := "- " + item.Title
		if item.Source != "" {
			line += fmt.Sprintf("（%s）", item.Source)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
}

// truncateString 截断字符串
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
