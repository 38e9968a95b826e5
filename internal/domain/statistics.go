package domain

// StatisticsPeriod 统计周期
type StatisticsPeriod string

const (
	PeriodDay   StatisticsPeriod = "day"
	PeriodWeek  StatisticsPeriod = "week"
	PeriodMonth StatisticsPeriod = "month"
	PeriodYear  StatisticsPeriod = "year"
)

// Valid 判断周期是否合法
func (p StatisticsPeriod) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// PeriodBucket 单个周期内的记录统计
type PeriodBucket struct {
	Period   string `json:"period"` // 2024-05-01 / 2024-W18 / 2024-05 / 2024
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	Inactive int    `json:"inactive"`
	Archived int    `json:"archived"`
}

// Overview 记录总览
type Overview struct {
	TotalEmails   int64                 `json:"totalEmails"`
	DeletedEmails int64                 `json:"deletedEmails"`
	ByStatus      map[EmailStatus]int64 `json:"byStatus"`
	ByDomain      map[string]int64      `json:"byDomain"`
	TotalTags     int64                 `json:"totalTags"`
}
