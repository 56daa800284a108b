package talk2m

import (
	"net/url"
	"strings"
)

// DefaultBaseURL Talk2M M2Web API 入口
const DefaultBaseURL = "https://m2web.talk2m.com/t2mapi"

// 账号级路由
const (
	RouteLogin       = "login"
	RouteLogout      = "logout"
	RouteAccountInfo = "getaccountinfo"
	RouteListDevices = "getewons"
	RouteGetDevice   = "getewon"
)

// 设备表单
const (
	FormParam     = "ParamForm"
	FormUpdateTag = "UpdateTagForm"
)

// DeviceRoute 设备 EBD 路由：get/<device>/rcgi.bin/<form>
func DeviceRoute(device, form string) string {
	return "get/" + url.PathEscape(device) + "/rcgi.bin/" + form
}

// routeLabel 指标标签，设备路由折叠为表单名避免高基数
func routeLabel(route string) string {
	switch route {
	case RouteLogin, RouteLogout, RouteAccountInfo, RouteListDevices, RouteGetDevice:
		return route
	}
	for _, form := range []string{FormParam, FormUpdateTag} {
		if strings.HasSuffix(route, "/rcgi.bin/"+form) {
			return "device/" + form
		}
	}
	return "other"
}
