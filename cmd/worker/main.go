package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/chat-bankrot/community-chat/internal/config"
	"github.com/chat-bankrot/community-chat/internal/email"
	"github.com/chat-bankrot/community-chat/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	smtpCfg := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
	if smtpCfg.Host == "" {
		log.Fatalf("SMTP_HOST is required")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var job rabbitmq.EmailJob
				if err := json.Unmarshal(d.Body, &job); err != nil || job.Email == "" || job.Token == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := sendTokenMail(smtpCfg, cfg.PublicBaseURL, job); err != nil {
					log.Printf("worker=%d mail to=%s failed cost=%s err=%v", workerID, job.Email, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}
				log.Printf("worker=%d mail sent to=%s plan=%s cost=%s", workerID, job.Email, job.Plan, time.Since(start))

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed to=%s err=%v", workerID, job.Email, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func sendTokenMail(smtpCfg email.SMTPConfig, chatURL string, job rabbitmq.EmailJob) error {
	subject, body := email.TokenMail(chatURL, job.Token, job.Plan, job.ExpiresDate)
	return email.SendText(smtpCfg, job.Email, subject, body)
}
