package main

import (
	"github.com/sirupsen/logrus"

	"github.com/luhaoyun888/go-subscribe-cn"
)

// logView 把行列表的变更通知写入调试日志。
type logView struct {
	log logrus.FieldLogger
}

var _ subscribe.View = logView{}

func (v logView) RowsInserted(start, count int) {
	v.log.WithFields(logrus.Fields{"start": start, "count": count}).Debug("插入行")
}

func (v logView) RowsRemoved(start, count int) {
	v.log.WithFields(logrus.Fields{"start": start, "count": count}).Debug("移除行")
}

func (v logView) RowInvalidated(row int) {
	v.log.WithField("row", row).Debug("行失效")
}
