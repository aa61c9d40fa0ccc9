package main

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"reflect"
	"time"

	"github.com/convrate/dashboard/abtest"
)

const (
	templatePlainMessage = "plainmsg"
	templateDashboard    = "dashboard"
)

func basicLayoutHandler(page string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		basicLayoutLookupRespond(page, w, r, nil)
	}
}

func basicLayoutLookupRespond(page string, w http.ResponseWriter, r *http.Request, p interface{}) {
	in := layouts.Load().Lookup(page)
	if in != nil {
		var params map[string]interface{}
		if p == nil {
			params = map[string]interface{}{}
		} else {
			m, mk := p.(map[string]interface{})
			if !mk {
				log.Println("Basic respond got parameters interface of wrong type")
				params = map[string]interface{}{}
			} else {
				params = m
			}
		}
		params["NavWhere"] = page
		params["BuildType"] = BuildType
		if _, ok := params["Theme"]; !ok {
			params["Theme"] = string(abtest.ThemeLight)
		}
		w.Header().Set("Server", "Conversion dashboard "+CommitHash)
		w.Header().Set("Cache-Control", "no-cache")
		err := in.Execute(w, params)
		if err != nil {
			log.Println(err)
		}
	} else {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}

var layoutFuncs = template.FuncMap{
	"noescape": func(s string) template.HTML {
		return template.HTML(s)
	},
	"inc": func(i int) int {
		return i + 1
	},
	"f64tostring": func(a float64) string {
		return fmt.Sprintf("%.2f", a)
	},
	"FormatPercent": FormatPercent,
	"avail": func(name string, data interface{}) bool {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		m, ok := data.(map[string]interface{})
		if ok {
			_, ok := m[name]
			return ok
		}
		if v.Kind() != reflect.Struct {
			return false
		}
		return v.FieldByName(name).IsValid()
	},
	"datefmt": func(val time.Time) string {
		return val.Format("15:04 02 Jan 2006")
	},
}

func FormatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}
