// Package domain 定义行情标的的领域模型：
// 符号解析、历史行情与数据提供方抽象
package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind 标的类别
type Kind string

const (
	KindEquity Kind = "equity"
	KindIndex  Kind = "index"
)

// Instrument 解析后的可交易标的
type Instrument struct {
	// Input 用户输入的原始符号
	Input string
	// Symbol 数据源侧的规范符号（股票带交易所后缀，指数带 ^ 前缀）
	Symbol string
	// Name 展示名称，仅指数有值
	Name string
	// Exchange 所属交易所
	Exchange string
	Kind     Kind
}

// PricePoint 单日收盘行情
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// History 标的的历史日线行情
type History struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// LastClose 最新收盘价，序列为空时返回 0
func (h *History) LastClose() float64 {
	if len(h.Points) == 0 {
		return 0
	}
	return h.Points[len(h.Points)-1].Close
}

// ResolutionError 表示符号在全部候选后缀上都无法获得行情
type ResolutionError struct {
	Symbol string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unknown instrument %q", e.Symbol)
}

// DataUnavailableError 表示行情数据源请求失败或返回空数据
type DataUnavailableError struct {
	Symbol string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market data unavailable for %q: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("market data unavailable for %q", e.Symbol)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// QuoteProvider 行情数据源
type QuoteProvider interface {
	// FetchHistory 拉取指定符号自 start 以来的日线收盘序列
	FetchHistory(ctx context.Context, symbol string, start time.Time) (*History, error)
}

// HistoryRepository 历史行情缓存
type HistoryRepository interface {
	Get(ctx context.Context, symbol string) (*History, error)
	Set(ctx context.Context, h *History, ttl time.Duration) error
}

// indexEntry 指数别名映射项
type indexEntry struct {
	symbol   string
	name     string
	exchange string
}

// indianIndices 印度市场指数别名表，键为归一化后的输入符号
var indianIndices = map[string]indexEntry{
	"NIFTY":            {"^NSEI", "Nifty 50", "NSE"},
	"NIFTY50":          {"^NSEI", "Nifty 50", "NSE"},
	"NIFTY_50":         {"^NSEI", "Nifty 50", "NSE"},
	"^NSEI":            {"^NSEI", "Nifty 50", "NSE"},
	"BANKNIFTY":        {"^NSEBANK", "Bank Nifty", "NSE"},
	"BANK_NIFTY":       {"^NSEBANK", "Bank Nifty", "NSE"},
	"NIFTYBANK":        {"^NSEBANK", "Bank Nifty", "NSE"},
	"^NSEBANK":         {"^NSEBANK", "Bank Nifty", "NSE"},
	"NIFTYIT":          {"^CNXIT", "Nifty IT", "NSE"},
	"NIFTY_IT":         {"^CNXIT", "Nifty IT", "NSE"},
	"^CNXIT":           {"^CNXIT", "Nifty IT", "NSE"},
	"NIFTYPHARMA":      {"^CNXPHARMA", "Nifty Pharma", "NSE"},
	"NIFTY_PHARMA":     {"^CNXPHARMA", "Nifty Pharma", "NSE"},
	"^CNXPHARMA":       {"^CNXPHARMA", "Nifty Pharma", "NSE"},
	"NIFTYAUTO":        {"^CNXAUTO", "Nifty Auto", "NSE"},
	"NIFTY_AUTO":       {"^CNXAUTO", "Nifty Auto", "NSE"},
	"^CNXAUTO":         {"^CNXAUTO", "Nifty Auto", "NSE"},
	"NIFTYFMCG":        {"^CNXFMCG", "Nifty FMCG", "NSE"},
	"NIFTY_FMCG":       {"^CNXFMCG", "Nifty FMCG", "NSE"},
	"^CNXFMCG":         {"^CNXFMCG", "Nifty FMCG", "NSE"},
	"NIFTYMETAL":       {"^CNXMETAL", "Nifty Metal", "NSE"},
	"NIFTY_METAL":      {"^CNXMETAL", "Nifty Metal", "NSE"},
	"^CNXMETAL":        {"^CNXMETAL", "Nifty Metal", "NSE"},
	"NIFTYREALTY":      {"^CNXREALTY", "Nifty Realty", "NSE"},
	"NIFTY_REALTY":     {"^CNXREALTY", "Nifty Realty", "NSE"},
	"^CNXREALTY":       {"^CNXREALTY", "Nifty Realty", "NSE"},
	"NIFTYENERGY":      {"^CNXENERGY", "Nifty Energy", "NSE"},
	"NIFTY_ENERGY":     {"^CNXENERGY", "Nifty Energy", "NSE"},
	"^CNXENERGY":       {"^CNXENERGY", "Nifty Energy", "NSE"},
	"NIFTYINFRA":       {"^CNXINFRA", "Nifty Infrastructure", "NSE"},
	"NIFTY_INFRA":      {"^CNXINFRA", "Nifty Infrastructure", "NSE"},
	"^CNXINFRA":        {"^CNXINFRA", "Nifty Infrastructure", "NSE"},
	"NIFTYPSE":         {"^CNXPSE", "Nifty PSE", "NSE"},
	"NIFTY_PSE":        {"^CNXPSE", "Nifty PSE", "NSE"},
	"^CNXPSE":          {"^CNXPSE", "Nifty PSE", "NSE"},
	"NIFTYMIDCAP50":    {"^NSEMDCP50", "Nifty Midcap 50", "NSE"},
	"NIFTY_MIDCAP_50":  {"^NSEMDCP50", "Nifty Midcap 50", "NSE"},
	"^NSEMDCP50":       {"^NSEMDCP50", "Nifty Midcap 50", "NSE"},
	"NIFTYNEXT50":      {"^NSMIDCP", "Nifty Next 50", "NSE"},
	"NIFTY_NEXT_50":    {"^NSMIDCP", "Nifty Next 50", "NSE"},
	"^NSMIDCP":         {"^NSMIDCP", "Nifty Next 50", "NSE"},
	"NIFTY100":         {"^CNX100", "Nifty 100", "NSE"},
	"NIFTY_100":        {"^CNX100", "Nifty 100", "NSE"},
	"^CNX100":          {"^CNX100", "Nifty 100", "NSE"},
	"NIFTY200":         {"^CNX200", "Nifty 200", "NSE"},
	"NIFTY_200":        {"^CNX200", "Nifty 200", "NSE"},
	"^CNX200":          {"^CNX200", "Nifty 200", "NSE"},
	"NIFTY500":         {"^CNX500", "Nifty 500", "NSE"},
	"NIFTY_500":        {"^CNX500", "Nifty 500", "NSE"},
	"^CNX500":          {"^CNX500", "Nifty 500", "NSE"},
	"SENSEX":           {"^BSESN", "S&P BSE Sensex", "BSE"},
	"^BSESN":           {"^BSESN", "S&P BSE Sensex", "BSE"},
	"BSE100":           {"^BSE100", "S&P BSE 100", "BSE"},
	"BSE_100":          {"^BSE100", "S&P BSE 100", "BSE"},
	"^BSE100":          {"^BSE100", "S&P BSE 100", "BSE"},
	"BSE200":           {"^BSE200", "S&P BSE 200", "BSE"},
	"BSE_200":          {"^BSE200", "S&P BSE 200", "BSE"},
	"^BSE200":          {"^BSE200", "S&P BSE 200", "BSE"},
	"BSE500":           {"^BSE500", "S&P BSE 500", "BSE"},
	"BSE_500":          {"^BSE500", "S&P BSE 500", "BSE"},
	"^BSE500":          {"^BSE500", "S&P BSE 500", "BSE"},
	"BSEMIDCAP":        {"BSE-MIDCAP.BO", "S&P BSE Midcap", "BSE"},
	"BSE_MIDCAP":       {"BSE-MIDCAP.BO", "S&P BSE Midcap", "BSE"},
	"BSESMALLCAP":      {"BSE-SMLCAP.BO", "S&P BSE Smallcap", "BSE"},
	"BSE_SMALLCAP":     {"BSE-SMLCAP.BO", "S&P BSE Smallcap", "BSE"},
	"INDIAVIX":         {"^INDIAVIX", "India VIX", "NSE"},
	"INDIA_VIX":        {"^INDIAVIX", "India VIX", "NSE"},
	"^INDIAVIX":        {"^INDIAVIX", "India VIX", "NSE"},
}

// LookupIndex 按别名查找指数，命中返回解析后的标的
func LookupIndex(symbol string) (Instrument, bool) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	entry, ok := indianIndices[key]
	if !ok {
		return Instrument{}, false
	}
	return Instrument{
		Input:    symbol,
		Symbol:   entry.symbol,
		Name:     entry.name,
		Exchange: entry.exchange,
		Kind:     KindIndex,
	}, true
}

// EquityCandidates 股票符号的候选数据源符号序列
// 已带交易所后缀或疑似境外符号时原样返回，否则依次尝试 NSE、BSE 后缀
func EquityCandidates(symbol string) []string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasPrefix(s, "^") || strings.Contains(s, ".") {
		return []string{s}
	}
	return []string{s + ".NS", s + ".BO"}
}
