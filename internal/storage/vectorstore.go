package storage

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
)

const vectorStoreShards = 16

// VectorStore 进程内按会话隔离的向量索引
// 向量在写入时做L2归一化，检索用内积即为余弦相似度
// 按会话ID分片加锁，不同会话的读写互不阻塞
type VectorStore struct {
	shards [vectorStoreShards]vectorShard
}

type vectorShard struct {
	mu       sync.RWMutex
	sessions map[string]*sessionIndex
}

// sessionIndex 单个会话的全部分块向量与原文
type sessionIndex struct {
	vectors   [][]float64
	documents []string
}

// scoredDoc 检索中间结果
type scoredDoc struct {
	index int
	score float64
}

// NewVectorStore 创建向量索引
func NewVectorStore() *VectorStore {
	s := &VectorStore{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*sessionIndex)
	}
	return s
}

func (s *VectorStore) shard(sessionID string) *vectorShard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.shards[h.Sum32()%vectorStoreShards]
}

// Add 写入会话的分块向量与原文，整体替换该会话已有数据
// 向量数与文档数必须一致
func (s *VectorStore) Add(sessionID string, embeddings [][]float64, documents []string) error {
	if len(embeddings) != len(documents) {
		return fmt.Errorf("向量数与文档数不一致: %d != %d", len(embeddings), len(documents))
	}

	vectors := make([][]float64, len(embeddings))
	for i, emb := range embeddings {
		vectors[i] = normalizeVector(emb)
	}
	docs := make([]string, len(documents))
	copy(docs, documents)

	shard := s.shard(sessionID)
	shard.mu.Lock()
	shard.sessions[sessionID] = &sessionIndex{vectors: vectors, documents: docs}
	shard.mu.Unlock()
	return nil
}

// Search 在会话内按余弦相似度检索top-k文档原文
// 会话不存在返回空结果，k超过文档数时收缩
func (s *VectorStore) Search(sessionID string, queryEmbedding []float64, topK int) []string {
	if topK <= 0 {
		return []string{}
	}

	shard := s.shard(sessionID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	index, ok := shard.sessions[sessionID]
	if !ok {
		return []string{}
	}

	query := normalizeVector(queryEmbedding)
	scored := make([]scoredDoc, 0, len(index.vectors))
	for i, vec := range index.vectors {
		scored = append(scored, scoredDoc{index: i, score: dotProduct(query, vec)})
	}

	// 相同得分按写入顺序排列，保证结果稳定
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].score > scored[b].score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	results := make([]string, 0, topK)
	for _, d := range scored[:topK] {
		results = append(results, index.documents[d.index])
	}
	return results
}

// Delete 删除会话数据，会话不存在为无操作
func (s *VectorStore) Delete(sessionID string) {
	shard := s.shard(sessionID)
	shard.mu.Lock()
	delete(shard.sessions, sessionID)
	shard.mu.Unlock()
}

// Count 返回会话中已索引的分块数
func (s *VectorStore) Count(sessionID string) int {
	shard := s.shard(sessionID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if index, ok := shard.sessions[sessionID]; ok {
		return len(index.documents)
	}
	return 0
}

// normalizeVector L2归一化，零向量保持为零
func normalizeVector(vec []float64) []float64 {
	out := make([]float64, len(vec))
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func dotProduct(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
