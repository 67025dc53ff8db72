// 包 行情标的服务的用例逻辑：符号解析、历史行情获取与缓存
package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wyfcoding/pkg/logging"

	"github.com/wyfcoding/riskengine/internal/instrument/domain"
)

const (
	// historyLookbackYears 历史行情回看窗口
	historyLookbackYears = 5
	// vixSymbol 波动率指数符号
	vixSymbol = "^INDIAVIX"
	// vixTTL VIX 进程内缓存有效期
	vixTTL = 24 * time.Hour
)

// InstrumentService 行情标的应用服务
// 负责符号解析、带缓存的历史行情获取与 VIX 查询
type InstrumentService struct {
	provider   domain.QuoteProvider
	cache      domain.HistoryRepository
	historyTTL time.Duration

	vixMu        sync.Mutex
	vixValue     float64
	vixFetchedAt time.Time
}

// NewInstrumentService 创建行情标的应用服务
func NewInstrumentService(provider domain.QuoteProvider, cache domain.HistoryRepository, historyTTL time.Duration) *InstrumentService {
	return &InstrumentService{
		provider:   provider,
		cache:      cache,
		historyTTL: historyTTL,
	}
}

// Resolve 将输入符号解析为可交易标的并返回其历史行情
// 指数走别名表直达；股票依次尝试 NSE、BSE 后缀，全部失败返回 ResolutionError
func (s *InstrumentService) Resolve(ctx context.Context, symbol string) (domain.Instrument, *domain.History, error) {
	if inst, ok := domain.LookupIndex(symbol); ok {
		h, err := s.History(ctx, inst.Symbol)
		if err != nil {
			return domain.Instrument{}, nil, err
		}
		return inst, h, nil
	}

	var lastErr error
	for _, candidate := range domain.EquityCandidates(symbol) {
		h, err := s.History(ctx, candidate)
		if err != nil {
			lastErr = err
			var unavailable *domain.DataUnavailableError
			if errors.As(err, &unavailable) {
				logging.Debug(ctx, "candidate symbol failed, trying next", "input", symbol, "candidate", candidate, "error", err.Error())
				continue
			}
			return domain.Instrument{}, nil, err
		}
		inst := domain.Instrument{
			Input:    symbol,
			Symbol:   candidate,
			Exchange: exchangeOf(candidate),
			Kind:     domain.KindEquity,
		}
		return inst, h, nil
	}

	logging.Warn(ctx, "symbol resolution failed on all candidates", "input", symbol, "error", errString(lastErr))
	return domain.Instrument{}, nil, &domain.ResolutionError{Symbol: symbol}
}

// History 获取指定规范符号的历史日线，先查缓存再回源
// 缓存读写失败仅记日志，不阻断主流程
func (s *InstrumentService) History(ctx context.Context, symbol string) (*domain.History, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, symbol)
		if err != nil {
			logging.Warn(ctx, "history cache read failed", "symbol", symbol, "error", err.Error())
		} else if cached != nil && len(cached.Points) > 0 {
			return cached, nil
		}
	}

	start := time.Now().AddDate(-historyLookbackYears, 0, 0)
	h, err := s.provider.FetchHistory(ctx, symbol, start)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, h, s.historyTTL); err != nil {
			logging.Warn(ctx, "history cache write failed", "symbol", symbol, "error", err.Error())
		}
	}
	return h, nil
}

// VIX 返回波动率指数的最新值
// 进程内缓存 24 小时，并写入按键区分的 Redis 缓存供多实例共享；
// 获取失败时返回 (0, false)，调用方按可选字段处理
func (s *InstrumentService) VIX(ctx context.Context) (float64, bool) {
	s.vixMu.Lock()
	defer s.vixMu.Unlock()

	if !s.vixFetchedAt.IsZero() && time.Since(s.vixFetchedAt) < vixTTL {
		return s.vixValue, true
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, vixSymbol)
		if err != nil {
			logging.Warn(ctx, "vix cache read failed", "symbol", vixSymbol, "error", err.Error())
		} else if cached != nil && cached.LastClose() > 0 {
			s.vixValue = cached.LastClose()
			s.vixFetchedAt = time.Now()
			return s.vixValue, true
		}
	}

	start := time.Now().AddDate(0, 0, -7)
	h, err := s.provider.FetchHistory(ctx, vixSymbol, start)
	if err != nil || h.LastClose() == 0 {
		logging.Warn(ctx, "vix fetch failed", "symbol", vixSymbol, "error", errString(err))
		return 0, false
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, h, vixTTL); err != nil {
			logging.Warn(ctx, "vix cache write failed", "symbol", vixSymbol, "error", err.Error())
		}
	}

	s.vixValue = h.LastClose()
	s.vixFetchedAt = time.Now()
	return s.vixValue, true
}

func exchangeOf(symbol string) string {
	if len(symbol) > 3 && symbol[len(symbol)-3:] == ".BO" {
		return "BSE"
	}
	return "NSE"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
