package mailqueue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const QueueName = "email_queue"

// DeclareQueue 声明邮件队列，生产者和消费者都需要先调用
func DeclareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		QueueName, // 队列名称
		true,      // 是否持久化
		false,     // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false,     // 是否独占
		false,     // 是否不等待
		nil,       // 额外参数
	)
}

type Publisher struct {
	ch      *amqp.Channel
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, timeout time.Duration) (*Publisher, error) {
	if _, err := DeclareQueue(ch); err != nil {
		return nil, err
	}

	return &Publisher{
		ch:      ch,
		timeout: timeout,
	}, nil
}

// Publish 将邮件序列化后发送到消息队列中，由 mail worker 负责真正发送
func (p *Publisher) Publish(ctx context.Context, msg domain.MailMessage) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		QueueName,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func encode(msg domain.MailMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode 用于 mail worker 解析队列中的消息
func Decode(body []byte) (domain.MailMessage, error) {
	msg := domain.MailMessage{}
	err := json.Unmarshal(body, &msg)
	return msg, err
}
