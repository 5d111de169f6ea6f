package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 request_id/host/slug 字段，供上传与站点请求日志复用。
func RequestFields(requestID, host, slug string) logrus.Fields {
	fields := logrus.Fields{
		"request_id": requestID,
		"host":       host,
	}
	if slug != "" {
		fields["slug"] = slug
	}
	return fields
}
