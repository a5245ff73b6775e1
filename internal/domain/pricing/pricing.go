package pricing

import "math"

// Engine は座席の基本価格を計算する純粋関数コラボレーター
// 内部ロジックは予約トランザクションの制御フローに影響しない
type Engine interface {
	// ComputeBasePrice は座席種別・埋まり率・開演までの時間から基本価格を計算する
	ComputeBasePrice(seatType string, fillRatio float64, hoursUntilEvent float64) int
}

// DemandModel は需要率から価格乗数を予測する純粋関数コラボレーター
type DemandModel interface {
	// PredictMultiplier は需要率（0〜1）から価格乗数を返す
	PredictMultiplier(demandRate float64) float64
}

// 価格乗数の安全範囲
// スコアリングモデルの出力は必ずこの範囲にクランプしてから適用する
const (
	MinMultiplier = 1.0
	MaxMultiplier = 1.3
)

// ClampMultiplier は乗数を安全範囲に収める
func ClampMultiplier(m float64) float64 {
	if m < MinMultiplier {
		return MinMultiplier
	}
	if m > MaxMultiplier {
		return MaxMultiplier
	}
	return m
}

// ApplyMultiplier は基本価格にクランプ済み乗数を適用し整数に丸める
func ApplyMultiplier(basePrice int, multiplier float64) int {
	return int(math.Round(float64(basePrice) * ClampMultiplier(multiplier)))
}

// StandardEngine は座席種別ごとの価格表に基づくデフォルト実装
type StandardEngine struct {
	priceTable   map[string]int
	defaultPrice int
}

// NewStandardEngine は新しいStandardEngineを作成する
func NewStandardEngine(priceTable map[string]int, defaultPrice int) *StandardEngine {
	return &StandardEngine{priceTable: priceTable, defaultPrice: defaultPrice}
}

// DefaultPriceTable は標準の座席種別価格表
func DefaultPriceTable() map[string]int {
	return map[string]int{
		"vip":      50000,
		"premium":  30000,
		"standard": 12000,
	}
}

// ComputeBasePrice は価格表の基本価格に埋まり率と開演までの時間による補正を掛ける
// 埋まり率が高いほど、開演が近いほど価格が上がる（補正はそれぞれ最大20%・10%）
func (e *StandardEngine) ComputeBasePrice(seatType string, fillRatio float64, hoursUntilEvent float64) int {
	base, ok := e.priceTable[seatType]
	if !ok {
		base = e.defaultPrice
	}

	fillFactor := 1.0 + 0.2*clamp01(fillRatio)

	// 開演72時間前から直線的に最大10%上乗せ
	urgency := 0.0
	if hoursUntilEvent < 72 {
		urgency = 0.1 * (1.0 - hoursUntilEvent/72)
	}

	return int(math.Round(float64(base) * fillFactor * (1.0 + urgency)))
}

// LinearDemandModel は需要率に比例した乗数を返すデフォルト実装
type LinearDemandModel struct {
	slope float64
}

// NewLinearDemandModel は新しいLinearDemandModelを作成する
func NewLinearDemandModel(slope float64) *LinearDemandModel {
	return &LinearDemandModel{slope: slope}
}

// PredictMultiplier は 1.0 + slope×需要率 を返す
// 呼び出し側がClampMultiplierで安全範囲に収める前提
func (m *LinearDemandModel) PredictMultiplier(demandRate float64) float64 {
	return 1.0 + m.slope*clamp01(demandRate)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var (
	_ Engine      = (*StandardEngine)(nil)
	_ DemandModel = (*LinearDemandModel)(nil)
)
