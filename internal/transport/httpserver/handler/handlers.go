package handler

import (
	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
	requestsdomain "roommates-app-go/internal/domain/requests"
	"roommates-app-go/pkg/logger"
)

type Handlers struct {
	Requests      *requestsdomain.Service
	Groups        *groupsdomain.Service
	Notifications *notificationsdomain.Service
	log           logger.Logger
}

func New(requests *requestsdomain.Service, groups *groupsdomain.Service, notifications *notificationsdomain.Service, log logger.Logger) *Handlers {
	return &Handlers{
		Requests:      requests,
		Groups:        groups,
		Notifications: notifications,
		log:           log,
	}
}
