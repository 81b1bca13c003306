package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartConsumer connects to RabbitMQ, declares both durable queues and
// appends each message to logs/registration.log in a single-line
// format.  It runs a reconnect loop with capped exponential backoff and
// never returns under normal operation; processing errors reject the
// offending message without requeueing so a poison message cannot spin.
func StartConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("registration-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("registration-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("registration-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{EnrollmentQueueName, InvoiceQueueName} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	enrollments, err := ch.Consume(EnrollmentQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", EnrollmentQueueName, err)
	}
	invoices, err := ch.Consume(InvoiceQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", InvoiceQueueName, err)
	}

	for {
		select {
		case d, ok := <-enrollments:
			if !ok {
				return errors.New("enrollment deliveries channel closed")
			}
			if err := handleEnrollment(d.Body); err != nil {
				log.Printf("registration-consumer: handle enrollment failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		case d, ok := <-invoices:
			if !ok {
				return errors.New("invoice deliveries channel closed")
			}
			if err := handleInvoice(d.Body); err != nil {
				log.Printf("registration-consumer: handle invoice failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func appendLogLine(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "registration.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func handleEnrollment(body []byte) error {
	var ev EnrollmentConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	courses := "[]"
	if len(ev.CourseNames) > 0 {
		courses = fmt.Sprintf("[%s]", strings.Join(ev.CourseNames, ","))
	}
	line := fmt.Sprintf("[%s] Enrollment confirmed | payment_record_id=%d | user_id=%d | email=%q | courses=%s\n",
		ev.ConfirmedAt, ev.PaymentRecordID, ev.UserID, ev.Email, courses)
	return appendLogLine(line)
}

func handleInvoice(body []byte) error {
	var ev WaitListInvoiceIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Wait list invoice issued | course_id=%d | course=%q | user_id=%d | email=%q | invoice_id=%s | expires=%s\n",
		ev.IssuedAt, ev.CourseID, ev.CourseName, ev.UserID, ev.Email, ev.InvoiceID, ev.Expires)
	return appendLogLine(line)
}
