//go:build wireinject
// +build wireinject

package main

import (
	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp 初始化应用
func wireApp(*conf.Bootstrap, log.Logger) (*CronApp, func(), error) {
	panic(wire.Build(
		// Data 层：数据库、Redis、分布式锁、事件日志
		data.HousekeepingProviderSet,

		// Biz 层
		biz.HousekeepingProviderSet,

		// App 结构
		wire.Struct(new(CronApp), "*"),
	))
}
