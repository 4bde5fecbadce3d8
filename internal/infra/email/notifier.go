package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, to, jobID, taskID, recordingID, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	msg := buildMessage(n.from, to, jobID, taskID, recordingID, errorMsg)

	if err := n.send(addr, nil, n.from, []string{to}, msg); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", to),
			zap.String("job_id", jobID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", to),
		zap.String("job_id", jobID),
		zap.String("task_id", taskID),
	)
	return nil
}

func buildMessage(from, to, jobID, taskID, recordingID, errorMsg string) []byte {
	subject := fmt.Sprintf("FIAP X - Face Detection Failed [Task %s]", taskID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"Face detection for your recording has permanently failed.\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Task ID: %s\r\n"+
			"Recording: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Please upload the recording again or contact support.\r\n\r\n"+
			"-- FIAP X Detection Service",
		jobID, taskID, recordingID, errorMsg,
	)
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body))
}
