package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Payment コラボレーターのエラー定義
var (
	ErrSignatureInvalid = errors.New("支払い署名が不正です")
	ErrProviderFailure  = errors.New("決済プロバイダーとの通信に失敗しました")
)

// Intent は外部プロバイダーに登録された支払いインテントのハンドル
type Intent struct {
	ProviderOrderRef string
	Amount           int
	Currency         string
}

// Provider は外部決済プロバイダーのインターフェース
type Provider interface {
	// CreateOrder はプロバイダー側に支払い注文を登録しハンドルを返す
	CreateOrder(ctx context.Context, amount int, currency, reference string) (*Intent, error)
}

// MockProvider はテストおよびローカル実行用のProvider実装
type MockProvider struct {
	orders sync.Map // providerOrderRef -> *Intent
}

// NewMockProvider は新しいMockProviderを作成する
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// CreateOrder は疑似的なプロバイダー注文を生成する
func (p *MockProvider) CreateOrder(ctx context.Context, amount int, currency, reference string) (*Intent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: 金額が不正です", ErrProviderFailure)
	}
	intent := &Intent{
		ProviderOrderRef: "mock_order_" + uuid.New().String()[:8],
		Amount:           amount,
		Currency:         currency,
	}
	p.orders.Store(intent.ProviderOrderRef, intent)
	return intent, nil
}

// GetOrder は登録済みのインテントを返す（テスト用）
func (p *MockProvider) GetOrder(providerOrderRef string) (*Intent, bool) {
	v, ok := p.orders.Load(providerOrderRef)
	if !ok {
		return nil, false
	}
	return v.(*Intent), true
}

var _ Provider = (*MockProvider)(nil)
