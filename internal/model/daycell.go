package model

// DayCell is one position of a month grid. Day is 0 for padding cells.
type DayCell struct {
	Index      int  `json:"index"`
	Day        int  `json:"day,omitempty"`
	HasEvent   bool `json:"hasEvent"`
	IsToday    bool `json:"isToday"`
	IsSelected bool `json:"isSelected"`
}

func (c DayCell) IsPadding() bool { return c.Day == 0 }
