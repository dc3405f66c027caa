package inventory

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Lua keeps the availability check and the decrement of a whole basket in one
// atomic step, so concurrent reservations against the same shop can never
// oversell an item. KEYS holds the quantity keys followed by the price keys;
// ARGV holds the requested quantities. Returns {0, i} when item i cannot be
// satisfied, otherwise {1, price...} observed under the same execution.
var reserveScript = redis.NewScript(`
local n = #ARGV
for i = 1, n do
	local cur = tonumber(redis.call('GET', KEYS[i]) or '-1')
	if cur < tonumber(ARGV[i]) then
		return {0, i}
	end
end
local out = {1}
for i = 1, n do
	redis.call('DECRBY', KEYS[i], ARGV[i])
	out[i + 1] = tonumber(redis.call('GET', KEYS[n + i]) or '0')
end
return out
`)

// rollbackScript restores every reserved quantity in one step so no reader
// observes a partially rolled back basket.
var rollbackScript = redis.NewScript(`
for i = 1, #ARGV do
	redis.call('INCRBY', KEYS[i], ARGV[i])
end
return 1
`)

var availableScript = redis.NewScript(`
for i = 1, #ARGV do
	local cur = tonumber(redis.call('GET', KEYS[i]) or '-1')
	if cur < tonumber(ARGV[i]) then
		return 0
	end
end
return 1
`)

var removeQuantityScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return -2
end
cur = tonumber(cur)
local delta = tonumber(ARGV[1])
if delta > cur then
	return -1
end
return redis.call('DECRBY', KEYS[1], delta)
`)

var removeItemScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) + redis.call('EXISTS', KEYS[2]) == 0 then
	return 0
end
redis.call('DEL', KEYS[1], KEYS[2])
redis.call('SREM', KEYS[3], ARGV[1])
return 1
`)

// Redis is a Ledger backed by a shared Redis instance, for deployments where
// several processes sell from the same shop. Key space is namespaced per shop
// so shops never contend with each other.
type Redis struct {
	R      *redis.Client
	Prefix string
}

// NewRedis returns a ledger for one shop identified by prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{R: client, Prefix: prefix}
}

func (r *Redis) qtyKey(itemID int64) string {
	return fmt.Sprintf("shop:%s:qty:%d", r.Prefix, itemID)
}

func (r *Redis) priceKey(itemID int64) string {
	return fmt.Sprintf("shop:%s:price:%d", r.Prefix, itemID)
}

func (r *Redis) itemsKey() string {
	return fmt.Sprintf("shop:%s:items", r.Prefix)
}

// ReserveAll implements Ledger.
func (r *Redis) ReserveAll(ctx context.Context, basket map[int64]int64) (Reservation, error) {
	req, err := normalizeBasket(basket)
	if err != nil {
		return Reservation{}, err
	}
	if len(req) == 0 {
		return Reservation{Items: map[int64]int64{}, UnitPrices: map[int64]int64{}}, nil
	}
	ids := sortedIDs(req)
	keys := make([]string, 0, 2*len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.qtyKey(id))
		args = append(args, req[id])
	}
	for _, id := range ids {
		keys = append(keys, r.priceKey(id))
	}
	raw, err := reserveScript.Run(ctx, r.R, keys, args...).Slice()
	if err != nil {
		return Reservation{}, err
	}
	if len(raw) < 1 {
		return Reservation{}, fmt.Errorf("reserve script returned empty result")
	}
	if toInt64(raw[0]) != 1 {
		failed := ids[0]
		if len(raw) > 1 {
			if idx := toInt64(raw[1]); idx >= 1 && int(idx) <= len(ids) {
				failed = ids[idx-1]
			}
		}
		return Reservation{}, fmt.Errorf("item %d: %w", failed, ErrInsufficientStock)
	}
	res := Reservation{
		Items:      make(map[int64]int64, len(ids)),
		UnitPrices: make(map[int64]int64, len(ids)),
	}
	for i, id := range ids {
		price := int64(0)
		if i+1 < len(raw) {
			price = toInt64(raw[i+1])
		}
		res.Items[id] = req[id]
		res.UnitPrices[id] = price
		res.Total += req[id] * price
	}
	return res, nil
}

// Rollback implements Ledger.
func (r *Redis) Rollback(ctx context.Context, basket map[int64]int64) error {
	req, err := normalizeBasket(basket)
	if err != nil {
		return err
	}
	if len(req) == 0 {
		return nil
	}
	ids := sortedIDs(req)
	keys := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.qtyKey(id))
		args = append(args, req[id])
	}
	return rollbackScript.Run(ctx, r.R, keys, args...).Err()
}

// Restock implements Ledger.
func (r *Redis) Restock(ctx context.Context, itemID, delta int64) error {
	if delta < 0 {
		return ErrInvalidQuantity
	}
	_, err := r.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, r.qtyKey(itemID), delta)
		pipe.SAdd(ctx, r.itemsKey(), itemID)
		return nil
	})
	return err
}

// SetPrice implements Ledger.
func (r *Redis) SetPrice(ctx context.Context, itemID, price int64) error {
	if price < 0 {
		return ErrInvalidPrice
	}
	_, err := r.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.priceKey(itemID), price, 0)
		pipe.SAdd(ctx, r.itemsKey(), itemID)
		return nil
	})
	return err
}

// RemoveItem implements Ledger.
func (r *Redis) RemoveItem(ctx context.Context, itemID int64) error {
	keys := []string{r.qtyKey(itemID), r.priceKey(itemID), r.itemsKey()}
	n, err := removeItemScript.Run(ctx, r.R, keys, itemID).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}
	return nil
}

// RemoveQuantity implements Ledger.
func (r *Redis) RemoveQuantity(ctx context.Context, itemID, delta int64) error {
	if delta < 0 {
		return ErrInvalidQuantity
	}
	n, err := removeQuantityScript.Run(ctx, r.R, []string{r.qtyKey(itemID)}, delta).Int64()
	if err != nil {
		return err
	}
	switch n {
	case -2:
		return fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	case -1:
		return fmt.Errorf("item %d: remove %d: %w", itemID, delta, ErrInsufficientStock)
	default:
		return nil
	}
}

// Quantity implements Ledger.
func (r *Redis) Quantity(ctx context.Context, itemID int64) (int64, error) {
	val, err := r.R.Get(ctx, r.qtyKey(itemID)).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// Available implements Ledger.
func (r *Redis) Available(ctx context.Context, basket map[int64]int64) (bool, error) {
	req, err := normalizeBasket(basket)
	if err != nil {
		return false, err
	}
	if len(req) == 0 {
		return true, nil
	}
	ids := sortedIDs(req)
	keys := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.qtyKey(id))
		args = append(args, req[id])
	}
	n, err := availableScript.Run(ctx, r.R, keys, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Prices implements Ledger.
func (r *Redis) Prices(ctx context.Context) (map[int64]int64, error) {
	members, err := r.R.SMembers(ctx, r.itemsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		val, err := r.R.Get(ctx, r.priceKey(id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		price, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, err
		}
		out[id] = price
	}
	return out, nil
}

func sortedIDs(req map[int64]int64) []int64 {
	ids := make([]int64, 0, len(req))
	for id := range req {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
