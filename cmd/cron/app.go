package main

import "credit-service/internal/biz"

// CronApp Cron 应用结构
type CronApp struct {
	housekeeping *biz.HousekeepingUseCase
}
