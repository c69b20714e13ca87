package spider

import "errors"

var ErrInvalidCell = errors.New("invalid data cell")

// 数据单元
type DataCell struct {
	Task *Task
	Data map[string]interface{} // 包含Task、Rule、Data、Url、Time五个键
}

/*
无输入，输出表名和一个错误

数据单元以任务名作为表名
*/
func (d *DataCell) GetTableName() (string, error) {
	return d.GetTaskName()
}

// 获取数据单元的任务名
func (d *DataCell) GetTaskName() (string, error) {
	return d.stringField("Task")
}

// 获取数据单元的规则名
func (d *DataCell) GetRuleName() (string, error) {
	return d.stringField("Rule")
}

// 获取解析出的记录，记录必须是map[string]interface{}
func (d *DataCell) GetRecord() (map[string]interface{}, error) {
	if d.Data == nil {
		return nil, ErrInvalidCell
	}
	rec, ok := d.Data["Data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("invalid data cell: Data is not a record")
	}
	return rec, nil
}

func (d *DataCell) stringField(key string) (string, error) {
	if d.Data == nil {
		return "", ErrInvalidCell
	}
	v, ok := d.Data[key].(string)
	if !ok {
		return "", errors.New("invalid data cell: missing " + key)
	}
	return v, nil
}

/*
无输入，输出字段列表

优先从数据单元所属任务的规则中获取字段列表，任务未绑定时再从全局任务仓库中查找
*/
func (d *DataCell) ItemFields() []string {
	rule, _ := d.GetRuleName()
	if d.Task != nil {
		if r, ok := d.Task.Rule.Trunk[rule]; ok {
			return r.ItemFields
		}
	}
	task, _ := d.GetTaskName()
	return GetFields(task, rule)
}

// 定义了存储引擎的统一规范
type Storage interface {
	Save(datas ...*DataCell) error
}

// 带缓冲的存储引擎在爬取结束时需要刷新
type Flusher interface {
	Flush() error
}
