// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type QueueTestSuite struct {
	suite.Suite
}

func TestQueue(t *testing.T) {
	suite.Run(t, new(QueueTestSuite))
}

func (suite *QueueTestSuite) TestEnqueueDequeueIntSuccess() {
	q := NewQueue("test_queue", reflect.TypeOf(int(0)), 100)

	suite.Equal(q.GetName(), "test_queue")
	suite.Equal(q.GetItemType(), reflect.TypeOf(int(0)))

	for i := 0; i < 100; i++ {
		err := q.Enqueue(i)
		suite.NoError(err)
	}

	for i := 0; i < 100; i++ {
		item, err := q.Dequeue(1 * time.Millisecond)
		suite.NoError(err)
		suite.Equal(item.(int), i)
	}
}

func (suite *QueueTestSuite) TestEnqueueDequeueStringSuccess() {
	var str string
	q := NewQueue("test_queue", reflect.TypeOf(str), 100)

	for i := 0; i < 100; i++ {
		err := q.Enqueue(strconv.Itoa(i))
		suite.NoError(err)
	}

	for i := 0; i < 100; i++ {
		item, err := q.Dequeue(1 * time.Millisecond)
		suite.NoError(err)
		val, err := strconv.Atoi(item.(string))
		suite.NoError(err)
		suite.Equal(val, i)
	}
}

func (suite *QueueTestSuite) TestEnqueueWrongItemType() {
	q := NewQueue("test_queue", reflect.TypeOf(int(0)), 10)
	err := q.Enqueue("not an int")
	suite.Error(err)
}

func (suite *QueueTestSuite) TestEnqueueFullQueue() {
	q := NewQueue("test_queue", reflect.TypeOf(int(0)), 2)
	suite.NoError(q.Enqueue(1))
	suite.NoError(q.Enqueue(2))
	suite.Error(q.Enqueue(3))
	suite.Equal(2, q.Length())
}

func (suite *QueueTestSuite) TestDequeueTimeout() {
	q := NewQueue("test_queue", reflect.TypeOf(int(0)), 10)

	item, err := q.Dequeue(5 * time.Millisecond)
	suite.Nil(item)
	suite.Error(err)
	_, ok := err.(DequeueTimeOutError)
	suite.True(ok)
}

func (suite *QueueTestSuite) TestConcurrentEnqueueDequeue() {
	q := NewQueue("test_queue", reflect.TypeOf(int(0)), 1000)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				suite.NoError(q.Enqueue(base + i))
			}
		}(w * 100)
	}
	wg.Wait()

	seen := map[int]bool{}
	for i := 0; i < 400; i++ {
		item, err := q.Dequeue(10 * time.Millisecond)
		suite.NoError(err)
		seen[item.(int)] = true
	}
	suite.Len(seen, 400)
}
