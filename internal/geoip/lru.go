package geoip

import (
	"container/list"
	"net/netip"
	"sync"
)

type lruCache struct {
	mu    sync.Mutex
	cap   int
	list  *list.List
	items map[netip.Addr]*list.Element
}

type entry struct {
	key netip.Addr
	val string
}

func newLRUCache(cap int) *lruCache {
	return &lruCache{
		cap:   cap,
		list:  list.New(),
		items: make(map[netip.Addr]*list.Element, cap),
	}
}

func (c *lruCache) get(k netip.Addr) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[k]; ok {
		c.list.MoveToFront(e)
		return e.Value.(*entry).val, true
	}
	return "", false
}

func (c *lruCache) put(k netip.Addr, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[k]; ok {
		e.Value.(*entry).val = v
		c.list.MoveToFront(e)
		return
	}
	if c.list.Len() >= c.cap {
		if old := c.list.Back(); old != nil {
			c.list.Remove(old)
			delete(c.items, old.Value.(*entry).key)
		}
	}
	c.items[k] = c.list.PushFront(&entry{key: k, val: v})
}
