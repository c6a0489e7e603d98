package models

import "time"

// DecisionQA 针对账户AI的问答记录
type DecisionQA struct {
	ID         string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	AccountID  string    `gorm:"type:varchar(26);not null;index" json:"account_id"`
	DecisionID *string   `gorm:"type:varchar(26);index" json:"decision_id"` // 提问时最近的一条决策
	Question   string    `gorm:"type:text;not null" json:"question"`
	Answer     string    `gorm:"type:text" json:"answer"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (DecisionQA) TableName() string {
	return "decision_qas"
}
