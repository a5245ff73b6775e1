package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// message はブローカーへ送信するメッセージ形式
type message struct {
	Type       string    `json:"type"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AMQPNotifier はRabbitMQを使用したNotifier実装
// チャンネルは再利用し、送信エラー時に接続を破棄して次回再接続する
type AMQPNotifier struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

// NewAMQPNotifier は新しいAMQPNotifierを作成する
// 接続は最初のPublishまで遅延される
func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{url: url, declared: make(map[string]bool)}
}

// Publish はトピックのキューへイベントを送信する
// メッセージは永続化フラグ付きで発行される
func (n *AMQPNotifier) Publish(ctx context.Context, topic, eventType string, payload any) error {
	body, err := json.Marshal(message{
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.ensureChannel(topic)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",    // デフォルトエクスチェンジ
		topic, // ルーティングキー = キュー名
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		n.reset()
		return fmt.Errorf("イベント送信に失敗: %w", err)
	}
	return nil
}

// Close は接続を閉じる
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	n.channel = nil
	n.declared = make(map[string]bool)
	return err
}

// ensureChannel はチャンネルとキュー宣言を準備する（mu保持前提）
func (n *AMQPNotifier) ensureChannel(topic string) (*amqp.Channel, error) {
	if n.channel == nil {
		conn, err := amqp.Dial(n.url)
		if err != nil {
			return nil, fmt.Errorf("ブローカー接続に失敗: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("チャンネル作成に失敗: %w", err)
		}
		n.conn = conn
		n.channel = ch
		n.declared = make(map[string]bool)
	}

	if !n.declared[topic] {
		// 冪等なキュー宣言（durable: ブローカー再起動後もメッセージを保持）
		if _, err := n.channel.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			n.reset()
			return nil, fmt.Errorf("キュー宣言に失敗: %w", err)
		}
		n.declared[topic] = true
	}
	return n.channel, nil
}

// reset は壊れた接続を破棄する（mu保持前提）
func (n *AMQPNotifier) reset() {
	if n.conn != nil {
		n.conn.Close()
	}
	n.conn = nil
	n.channel = nil
	n.declared = make(map[string]bool)
}

var _ Notifier = (*AMQPNotifier)(nil)
