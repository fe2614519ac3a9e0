package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// FormDraftKey returns the cache key for the unsaved document of an editing session
func (r *CacheKeyStruct) FormDraftKey(formID string) string {
	return fmt.Sprintf("form:%s:draft", formID)
}

// FormPayloadKey returns the cache key for a saved form served to respondents
func (r *CacheKeyStruct) FormPayloadKey(formID string) string {
	return fmt.Sprintf("form:%s:payload", formID)
}

// ResponseAnswersKey returns the hash key holding a respondent's answers by question id
func (r *CacheKeyStruct) ResponseAnswersKey(sessionID string) string {
	return fmt.Sprintf("response:%s:answers", sessionID)
}

// ResponseMetaKey returns the hash key holding a respondent session's form id and submit state
func (r *CacheKeyStruct) ResponseMetaKey(sessionID string) string {
	return fmt.Sprintf("response:%s:meta", sessionID)
}

var CacheKey = NewCacheKeyStruct()
