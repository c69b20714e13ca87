package spider

// 采集规则树
type RuleTree struct {
	Root  func() ([]*Request, error) // 根节点(执行入口)，用于生成爬虫的种子请求
	Trunk map[string]*Rule           // 规则哈希表，规则名 -> 规则
}

// 采集规则节点
type Rule struct {
	ItemFields []string                            // 输出数据的字段名，按顺序对应存储的列
	ParseFunc  func(*Context) (ParseResult, error) // 内容解析函数
}

// 表示解析结果
type ParseResult struct {
	Requests []*Request    // 从当前页面解析出的新请求
	Items    []interface{} // 从当前页面提取的有用数据
}

// 动态规则模板，由js脚本描述根请求和解析规则
type (
	TaskModle struct {
		Name  string      `json:"name"`        // 任务名称
		Root  string      `json:"root_script"` // 用于生成初始请求的JavaScript脚本
		Rules []RuleModle `json:"rule"`        // 该任务下所有的解析规则
	}

	RuleModle struct {
		Name       string   `json:"name"`         // 规则名称
		ItemFields []string `json:"item_fields"`  // 该规则输出的字段
		ParseFunc  string   `json:"parse_script"` // 用于解析页面内容的JavaScript脚本
	}
)
