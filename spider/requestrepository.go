package spider

import "sync"

type ReqHistoryRepository interface {
	/*
	   输入一个或多个请求，无输出

	   该方法用于将一个或多个请求添加到已访问的请求列表中
	*/
	AddVisited(reqs ...*Request)
	/*
	   输入一个请求，无输出

	   该方法用于将一个请求从已访问的请求列表中删除
	*/
	DeleteVisited(req *Request)
	/*
	   输入一个请求，输出一个布尔值，true表示首次失败允许重试，false表示已失败过

	   该方法用于将一个请求添加到失败的请求列表中，若该请求已存在于失败的请求列表中，则返回false，否则返回true
	*/
	AddFailures(req *Request) bool
	// 将一个请求从失败的请求列表中删除
	DeleteFailures(req *Request)
	// 判断请求是否已经被访问过
	HasVisited(req *Request) bool
	// 判断请求未访问过时将其标记为已访问，返回true表示本次标记成功
	TryVisit(req *Request) bool
	// 已访问请求的数量
	VisitedCount() int
}

type reqHistory struct {
	visited     map[string]bool
	visitedLock sync.Mutex

	failures    map[string]*Request // 失败请求id -> 失败请求
	failureLock sync.Mutex
}

/*
无输入，输出一个ReqHistoryRepository实例

该方法用于创建一个新的ReqHistoryRepository实例，并初始化
*/
func NewReqHistoryRepository() ReqHistoryRepository {
	r := &reqHistory{}
	r.visited = make(map[string]bool, 100)
	r.failures = make(map[string]*Request, 100)
	return r
}

func (r *reqHistory) HasVisited(req *Request) bool {
	r.visitedLock.Lock()
	defer r.visitedLock.Unlock()

	return r.visited[req.Unique()]
}

func (r *reqHistory) AddVisited(reqs ...*Request) {
	r.visitedLock.Lock()
	defer r.visitedLock.Unlock()

	for _, req := range reqs {
		r.visited[req.Unique()] = true
	}
}

/*
输入一个请求，输出一个布尔值

检查与标记在同一把锁内完成，避免两个工作协程同时抓取同一个地址
*/
func (r *reqHistory) TryVisit(req *Request) bool {
	r.visitedLock.Lock()
	defer r.visitedLock.Unlock()

	unique := req.Unique()
	if r.visited[unique] {
		return false
	}
	r.visited[unique] = true
	return true
}

func (r *reqHistory) DeleteVisited(req *Request) {
	r.visitedLock.Lock()
	defer r.visitedLock.Unlock()

	delete(r.visited, req.Unique())
}

func (r *reqHistory) VisitedCount() int {
	r.visitedLock.Lock()
	defer r.visitedLock.Unlock()

	return len(r.visited)
}

/*
输入一个请求，输出一个布尔值，true表示首次失败允许重试，false表示已失败过

不允许重复爬取的任务需要先从已访问列表中删除该请求，重试时才不会被去重逻辑过滤
*/
func (r *reqHistory) AddFailures(req *Request) bool {
	first := true
	if !req.Task.Reload {
		r.DeleteVisited(req)
	}

	r.failureLock.Lock()
	defer r.failureLock.Unlock()

	if _, ok := r.failures[req.Unique()]; !ok {
		r.failures[req.Unique()] = req
	} else {
		first = false
	}

	return first
}

func (r *reqHistory) DeleteFailures(req *Request) {
	r.failureLock.Lock()
	defer r.failureLock.Unlock()

	delete(r.failures, req.Unique())
}
