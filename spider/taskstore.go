package spider

import (
	"fmt"
	"sort"

	"github.com/robertkrimen/otto"
)

// TaskStore is a global instace
var (
	TaskStore = &taskStore{
		List: []*Task{},
		Hash: map[string]*Task{},
	}
)

type taskStore struct {
	List []*Task
	Hash map[string]*Task
}

/*
输入一个任务，无输出

该方法用于将一个任务添加到任务存储中，将任务添加到任务列表和任务哈希表中，同名任务会覆盖哈希表中的旧任务
*/
func (c *taskStore) Add(task *Task) {
	if _, ok := c.Hash[task.Name]; ok {
		for i, t := range c.List {
			if t.Name == task.Name {
				c.List = append(c.List[:i], c.List[i+1:]...)
				break
			}
		}
	}
	c.Hash[task.Name] = task
	c.List = append(c.List, task)
}

// 按名称查找预设任务
func (c *taskStore) Get(name string) (*Task, bool) {
	t, ok := c.Hash[name]
	return t, ok
}

// 返回按字母序排列的全部任务名
func (c *taskStore) Names() []string {
	names := make([]string, 0, len(c.Hash))
	for name := range c.Hash {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/*
输入一个任务模型，无输出

该方法用于将一个任务模型转换为任务，通过js虚拟机动态定义Root规则和子规则，并将任务添加到任务存储中
*/
func (c *taskStore) AddJSTask(m *TaskModle) {
	task := NewTask(WithName(m.Name))

	// 定义 Root 规则：通过 JS 生成初始请求列表
	task.Rule.Root = func() ([]*Request, error) {
		vm := otto.New()
		if err := vm.Set("AddJsReq", AddJsReqs); err != nil { // 注入 Go 函数到 JS
			return nil, err
		}

		v, err := vm.Eval(m.Root)
		if err != nil {
			return nil, err
		}

		e, err := v.Export()
		if err != nil {
			return nil, err
		}

		reqs, ok := e.([]*Request)
		if !ok {
			return nil, fmt.Errorf("root script of %s returned %T", m.Name, e)
		}
		return reqs, nil
	}

	// 定义子规则（Trunk）：通过 JS 定义每个子页面的解析逻辑
	for _, r := range m.Rules {
		paesrFunc := func(parse string) func(ctx *Context) (ParseResult, error) {
			return func(ctx *Context) (ParseResult, error) {
				vm := otto.New()
				if err := vm.Set("ctx", ctx); err != nil { // 注入上下文到 JS
					return ParseResult{}, err
				}

				v, err := vm.Eval(parse)
				if err != nil {
					return ParseResult{}, err
				}

				e, err := v.Export()
				if err != nil {
					return ParseResult{}, err
				}

				switch res := e.(type) {
				case nil:
					return ParseResult{}, nil
				case ParseResult:
					return res, nil
				case *ParseResult:
					return *res, nil
				default:
					return ParseResult{}, fmt.Errorf("parse script returned %T", e)
				}
			}
		}(r.ParseFunc)

		if task.Rule.Trunk == nil {
			task.Rule.Trunk = make(map[string]*Rule, 0)
		}

		task.Rule.Trunk[r.Name] = &Rule{
			ItemFields: r.ItemFields,
			ParseFunc:  paesrFunc,
		}
	}

	c.Add(task)
}

/*
输入一个请求描述列表，输出一个请求列表

该方法用于将 JS 环境中的请求描述转换为 Go 的 Request 对象，缺少URL的描述会使整个结果为nil
*/
func AddJsReqs(jreqs []map[string]interface{}) []*Request {
	reqs := make([]*Request, 0)

	for _, jreq := range jreqs {
		req := jsRequest(jreq)
		if req == nil {
			return nil
		}
		reqs = append(reqs, req)
	}

	return reqs
}

func jsRequest(jreq map[string]interface{}) *Request {
	u, ok := jreq["Url"].(string)
	if !ok {
		return nil
	}

	req := &Request{Url: u}
	req.RuleName, _ = jreq["RuleName"].(string)
	req.Method, _ = jreq["Method"].(string)
	// js中的数字导出为float64
	switch p := jreq["Priority"].(type) {
	case int:
		req.Priority = p
	case int64:
		req.Priority = int(p)
	case float64:
		req.Priority = int(p)
	}
	return req
}

/*
输入任务名称和规则名称，输出字段列表

该方法用于获取指定任务和规则的字段列表，任务或规则不存在时返回nil
*/
func GetFields(taskName string, ruleName string) []string {
	t, ok := TaskStore.Hash[taskName]
	if !ok {
		return nil
	}
	r, ok := t.Rule.Trunk[ruleName]
	if !ok {
		return nil
	}
	return r.ItemFields
}
