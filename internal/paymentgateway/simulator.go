package paymentgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel card numbers that force a specific decline regardless of amount.
const (
	CardAlwaysInvalid  = "4000000000000002"
	CardAlwaysExpired  = "4000000000000069"
	CardTokenizeReject = "4000000000000119"
)

// sentinelAmounts map exact amounts to forced scenarios, used as test
// fixtures to exercise each decline path deterministically. Matching is
// exact decimal equality, not rounded.
var sentinelAmounts = []struct {
	amount   decimal.Decimal
	scenario Scenario
}{
	{decimal.RequireFromString("13.13"), ScenarioInsufficientFunds},
	{decimal.RequireFromString("14.14"), ScenarioInvalidCard},
	{decimal.RequireFromString("15.15"), ScenarioExpiredCard},
	{decimal.RequireFromString("16.16"), ScenarioNetworkError},
	{decimal.RequireFromString("17.17"), ScenarioFraudDetected},
}

var randomFailures = []Scenario{
	ScenarioInsufficientFunds,
	ScenarioInvalidCard,
	ScenarioNetworkError,
	ScenarioFraudDetected,
}

// largeAmountThreshold is where the success rate drops by 20 percentage
// points and failures are always declines for funds.
var largeAmountThreshold = decimal.NewFromInt(500)

type SimulatorConfig struct {
	SuccessRate       int           // percentage, default 85
	RefundSuccessRate int           // percentage, default 95
	PaymentDelay      time.Duration // default 2s
	RefundDelay       time.Duration // default 1s
	Seed              int64         // 0 seeds from the wall clock
}

func (c *SimulatorConfig) applyDefaults() {
	if c.SuccessRate <= 0 {
		c.SuccessRate = 85
	}
	if c.RefundSuccessRate <= 0 {
		c.RefundSuccessRate = 95
	}
	if c.PaymentDelay == 0 {
		c.PaymentDelay = 2 * time.Second
	}
	if c.RefundDelay == 0 {
		c.RefundDelay = time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Simulator implements Gateway with deterministic overrides plus seeded
// randomness. All state is instance-held so tests can run simulators with
// fixed seeds side by side.
type Simulator struct {
	cfg    SimulatorConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(cfg SimulatorConfig, logger *slog.Logger) *Simulator {
	cfg.applyDefaults()
	return &Simulator{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Decide is the pure decision function behind Charge. successRoll is in
// [0,100), failurePick indexes the random-failure set. Deterministic rules
// win over the rolls:
//  1. sentinel amounts force their scenario
//  2. amounts above 500 succeed at (rate-20)% and only fail for funds
//  3. sentinel card numbers force invalid/expired declines
//  4. otherwise succeed at rate%, else a uniform random decline
func Decide(amount decimal.Decimal, cardNumber string, successRate int, successRoll int, failurePick int) Scenario {
	for _, s := range sentinelAmounts {
		if amount.Equal(s.amount) {
			return s.scenario
		}
	}

	if amount.GreaterThan(largeAmountThreshold) {
		if successRoll < successRate-20 {
			return ScenarioApproved
		}
		return ScenarioInsufficientFunds
	}

	switch cardNumber {
	case CardAlwaysInvalid:
		return ScenarioInvalidCard
	case CardAlwaysExpired:
		return ScenarioExpiredCard
	}

	if successRoll < successRate {
		return ScenarioApproved
	}
	return randomFailures[failurePick%len(randomFailures)]
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (*Outcome, error) {
	start := time.Now()

	if err := s.wait(ctx, s.cfg.PaymentDelay); err != nil {
		s.logger.Warn("simulator: charge cancelled before completion",
			"order_id", req.OrderID,
			"error", err)
		return nil, fmt.Errorf("gateway charge interrupted: %w", err)
	}

	var cardNumber string
	if req.Card != nil {
		cardNumber = req.Card.Number
	}

	successRoll, failurePick := s.rolls()
	scenario := Decide(req.Amount, cardNumber, s.cfg.SuccessRate, successRoll, failurePick)

	outcome := &Outcome{
		Scenario:      scenario,
		TransactionID: fmt.Sprintf("txn_%s", strings.ReplaceAll(uuid.New().String(), "-", "")),
		Reference:     fmt.Sprintf("PAY-%s", strings.ToUpper(uuid.New().String()[:8])),
		FailureReason: scenario.FailureReason(),
		RawResponse:   s.rawResponse(scenario, start),
	}

	s.logger.Info("simulator: charge decided",
		"order_id", req.OrderID,
		"amount", req.Amount.String(),
		"scenario", scenario,
		"transaction_id", outcome.TransactionID,
		"elapsed_ms", time.Since(start).Milliseconds())

	return outcome, nil
}

func (s *Simulator) Refund(ctx context.Context, req RefundRequest) (*RefundOutcome, error) {
	start := time.Now()

	if req.TransactionID == "" {
		return nil, fmt.Errorf("refund requires a gateway transaction id")
	}

	if err := s.wait(ctx, s.cfg.RefundDelay); err != nil {
		return nil, fmt.Errorf("gateway refund interrupted: %w", err)
	}

	roll, _ := s.rolls()
	success := roll < s.cfg.RefundSuccessRate

	outcome := &RefundOutcome{
		Success:     success,
		RawResponse: s.rawResponse(ScenarioApproved, start),
	}
	if success {
		outcome.RefundID = fmt.Sprintf("ref_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
	}

	s.logger.Info("simulator: refund decided",
		"transaction_id", req.TransactionID,
		"amount", req.Amount.String(),
		"success", success,
		"refund_id", outcome.RefundID)

	return outcome, nil
}

func (s *Simulator) Tokenize(ctx context.Context, card CardDetails) (string, error) {
	if card.Number == CardTokenizeReject {
		return "", fmt.Errorf("gateway rejected card tokenization")
	}
	return fmt.Sprintf("tok_%s", strings.ReplaceAll(uuid.New().String(), "-", "")), nil
}

func (s *Simulator) rolls() (successRoll, failurePick int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(100), s.rng.Intn(len(randomFailures))
}

func (s *Simulator) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) rawResponse(scenario Scenario, start time.Time) json.RawMessage {
	blob, _ := json.Marshal(map[string]interface{}{
		"scenario":   string(scenario),
		"delay_ms":   time.Since(start).Milliseconds(),
		"simulated":  true,
		"decided_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return blob
}
