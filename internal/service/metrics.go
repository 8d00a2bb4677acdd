package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	expensesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wolls_expenses_created_total",
		Help: "Number of expenses created.",
	})

	invitationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wolls_invitations_sent_total",
		Help: "Number of group invitations sent.",
	})

	invitationResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wolls_invitation_responses_total",
		Help: "Number of invitation responses by outcome.",
	}, []string{"outcome"})
)
